package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/api"
	"github.com/phrazzld/tasktracker-api/internal/config"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/overdue"
	"github.com/phrazzld/tasktracker-api/internal/platform/memory"
	"github.com/phrazzld/tasktracker-api/internal/service"
	"github.com/phrazzld/tasktracker-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminUsername = "admin"

// testClock is a settable clock shared by the task service and the sweeper.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	router    http.Handler
	clock     *testClock
	users     *memory.UserStore
	scheduler *overdue.Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &testClock{now: time.Now().UTC()}
	users := memory.NewUserStore()
	tasks := memory.NewTaskStore()
	directory := service.NewUserDirectory(users)

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:                   strings.Repeat("k", 32),
		TokenLifetimeMinutes:        15,
		RefreshTokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	userService := service.NewUserService(users, auth.NewBcryptVerifier(bcrypt.MinCost), adminUsername, log)
	taskService, err := service.NewTaskService(tasks, directory, log, service.WithClock(clock.Now))
	require.NoError(t, err)

	sweeper := overdue.NewSweeper(tasks, log, overdue.WithClock(clock.Now))
	scheduler, err := overdue.NewScheduler(sweeper, overdue.Config{Cron: overdue.DefaultCron, Enabled: true}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scheduler.Stop(context.Background()) })

	router := api.NewRouter(api.RouterDeps{
		Tasks:      taskService,
		Users:      userService,
		Directory:  directory,
		JWTService: jwtService,
		Scheduler:  scheduler,
		Logger:     log,
	})

	return &testEnv{router: router, clock: clock, users: users, scheduler: scheduler}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) register(t *testing.T, username string) api.AuthResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[api.AuthResponse](t, rr)
}

func (e *testEnv) createTask(t *testing.T, token string, body map[string]interface{}) api.TaskResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/tasks", token, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[api.TaskResponse](t, rr)
}

func (e *testEnv) getTask(t *testing.T, token string, id uuid.UUID) api.TaskResponse {
	t.Helper()
	rr := e.do(t, http.MethodGet, "/api/tasks/"+id.String(), token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[api.TaskResponse](t, rr)
}

func (e *testEnv) checkOverdue(t *testing.T, token string) api.CheckOverdueResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/admin/tasks/check-overdue", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[api.CheckOverdueResponse](t, rr)
}

type errorBody struct {
	Error   string               `json:"error"`
	TraceID string               `json:"trace_id"`
	Details []service.FieldError `json:"details"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func fields(problems []service.FieldError) []string {
	out := make([]string, 0, len(problems))
	for _, p := range problems {
		out = append(out, p.Field)
	}
	return out
}

func taskIDs(tasks []api.TaskResponse) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func TestOverdueLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, adminUsername)
	require.Equal(t, domain.UserRoleAdmin, admin.Role)

	due := env.clock.Now().Add(time.Hour)
	open := env.createTask(t, admin.AccessToken, map[string]interface{}{"title": "file report", "due_date": due})
	done := env.createTask(t, admin.AccessToken, map[string]interface{}{"title": "ship release", "due_date": due})
	undated := env.createTask(t, admin.AccessToken, map[string]interface{}{"title": "someday"})
	assert.Equal(t, domain.TaskStatusNew, open.Status)

	rr := env.do(t, http.MethodPut, "/api/tasks/"+done.ID.String(), admin.AccessToken,
		map[string]string{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Nothing is due yet.
	first := env.checkOverdue(t, admin.AccessToken)
	assert.True(t, first.Success)
	assert.Equal(t, 0, first.TasksUpdated)

	env.clock.Advance(2 * time.Hour)

	second := env.checkOverdue(t, admin.AccessToken)
	assert.True(t, second.Success)
	assert.Equal(t, 1, second.TasksUpdated)
	assert.Equal(t, 1, second.Report.Examined)
	assert.Empty(t, second.Report.Failed)

	assert.Equal(t, domain.TaskStatusOverdue, env.getTask(t, admin.AccessToken, open.ID).Status)
	assert.Equal(t, domain.TaskStatusCompleted, env.getTask(t, admin.AccessToken, done.ID).Status)
	assert.Equal(t, domain.TaskStatusNew, env.getTask(t, admin.AccessToken, undated.ID).Status)

	third := env.checkOverdue(t, admin.AccessToken)
	assert.Equal(t, 0, third.TasksUpdated, "second sweep must find nothing")
	assert.Equal(t, 0, third.Report.Examined)

	status := decode[overdue.Status](t, env.do(t, http.MethodGet, "/api/admin/scheduler/status", admin.AccessToken, nil))
	require.NotNil(t, status.LastRun)
	assert.Equal(t, 0, status.LastRun.Succeeded)
	assert.False(t, status.Running)
}

func TestOverdueTaskCanBeMovedOn(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, adminUsername)

	task := env.createTask(t, admin.AccessToken, map[string]interface{}{
		"title":    "late",
		"due_date": env.clock.Now().Add(time.Minute),
	})
	env.clock.Advance(time.Hour)
	env.checkOverdue(t, admin.AccessToken)

	rr := env.do(t, http.MethodPut, "/api/tasks/"+task.ID.String(), admin.AccessToken,
		map[string]string{"status": "overdue"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{"status"}, fields(decode[errorBody](t, rr).Details))

	rr = env.do(t, http.MethodPut, "/api/tasks/"+task.ID.String(), admin.AccessToken,
		map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.TaskStatusInProgress, decode[api.TaskResponse](t, rr).Status)
}

func TestSchedulerSwitch(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, adminUsername)
	user := env.register(t, "regular")

	status := decode[overdue.Status](t, env.do(t, http.MethodGet, "/api/admin/scheduler/status", admin.AccessToken, nil))
	assert.True(t, status.Enabled)
	assert.Equal(t, overdue.DefaultCron, status.Cron)
	assert.NotNil(t, status.NextRun)

	rr := env.do(t, http.MethodPut, "/api/admin/scheduler/enabled", admin.AccessToken, map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	status = decode[overdue.Status](t, rr)
	assert.False(t, status.Enabled)
	assert.Nil(t, status.NextRun)
	assert.False(t, env.scheduler.Enabled())

	// The manual trigger ignores the switch.
	task := env.createTask(t, admin.AccessToken, map[string]interface{}{
		"title":    "late",
		"due_date": env.clock.Now().Add(time.Minute),
	})
	env.clock.Advance(time.Hour)
	assert.Equal(t, 1, env.checkOverdue(t, admin.AccessToken).TasksUpdated)
	assert.Equal(t, domain.TaskStatusOverdue, env.getTask(t, admin.AccessToken, task.ID).Status)

	rr = env.do(t, http.MethodPut, "/api/admin/scheduler/enabled", admin.AccessToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	for _, req := range []struct{ method, path string }{
		{http.MethodPost, "/api/admin/tasks/check-overdue"},
		{http.MethodGet, "/api/admin/scheduler/status"},
		{http.MethodGet, "/api/users"},
	} {
		rr := env.do(t, req.method, req.path, user.AccessToken, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code, req.path)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/tasks", user.AccessToken, map[string]interface{}{
		"title":            "   ",
		"due_date":         env.clock.Now().Add(-time.Minute),
		"assigned_user_id": uuid.New(),
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	body := decode[errorBody](t, rr)
	assert.Equal(t, "Validation failed", body.Error)
	assert.NotEmpty(t, body.TraceID)
	assert.ElementsMatch(t, []string{"title", "due_date", "assigned_user_id"}, fields(body.Details))

	rr = env.do(t, http.MethodPost, "/api/tasks", user.AccessToken, map[string]interface{}{
		"title":   "ok",
		"unknown": true,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTaskCRUD(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice")

	task := env.createTask(t, user.AccessToken, map[string]interface{}{
		"title":            "write docs",
		"description":      "api section",
		"assigned_user_id": user.UserID,
	})
	require.NotNil(t, task.AssignedUserName)
	assert.Equal(t, "alice", *task.AssignedUserName)
	assert.True(t, env.clock.Now().Equal(task.CreatedDate))

	rr := env.do(t, http.MethodPut, "/api/tasks/"+task.ID.String(), user.AccessToken,
		map[string]string{"description": ""})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[api.TaskResponse](t, rr)
	assert.Empty(t, updated.Description)
	assert.Equal(t, "write docs", updated.Title)

	rr = env.do(t, http.MethodPut, "/api/tasks/"+task.ID.String(), user.AccessToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/tasks/not-a-uuid", user.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/tasks/"+uuid.NewString(), user.AccessToken, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/tasks/"+task.ID.String(), user.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/tasks/"+task.ID.String(), user.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Task not found", decode[errorBody](t, rr).Error)

	rr = env.do(t, http.MethodDelete, "/api/tasks/"+task.ID.String(), user.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAssigneeNameIsResolvedOnRead(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice")
	bob := env.register(t, "bob")

	task := env.createTask(t, user.AccessToken, map[string]interface{}{
		"title":            "review",
		"assigned_user_id": bob.UserID,
	})
	require.NotNil(t, task.AssignedUserName)
	assert.Equal(t, "bob", *task.AssignedUserName)

	env.users.Remove(bob.UserID)

	got := env.getTask(t, user.AccessToken, task.ID)
	require.NotNil(t, got.AssignedUserID)
	assert.Equal(t, bob.UserID, *got.AssignedUserID)
	assert.Nil(t, got.AssignedUserName)

	rr := env.do(t, http.MethodPut, "/api/tasks/"+task.ID.String(), user.AccessToken,
		map[string]interface{}{"assigned_user_id": bob.UserID})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{"assigned_user_id"}, fields(decode[errorBody](t, rr).Details))
}

func TestListTasksFilters(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	now := env.clock.Now()

	soon := env.createTask(t, alice.AccessToken, map[string]interface{}{
		"title":            "soon",
		"due_date":         now.Add(time.Hour),
		"assigned_user_id": alice.UserID,
	})
	later := env.createTask(t, alice.AccessToken, map[string]interface{}{
		"title":            "later",
		"due_date":         now.Add(48 * time.Hour),
		"assigned_user_id": bob.UserID,
	})
	started := env.createTask(t, alice.AccessToken, map[string]interface{}{"title": "started"})
	rr := env.do(t, http.MethodPut, "/api/tasks/"+started.ID.String(), alice.AccessToken,
		map[string]string{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, rr.Code)

	list := func(query url.Values) []uuid.UUID {
		t.Helper()
		rr := env.do(t, http.MethodGet, "/api/tasks?"+query.Encode(), alice.AccessToken, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		return taskIDs(decode[[]api.TaskResponse](t, rr))
	}

	assert.ElementsMatch(t, []uuid.UUID{soon.ID, later.ID, started.ID}, list(url.Values{}))
	assert.ElementsMatch(t, []uuid.UUID{later.ID}, list(url.Values{"user_id": {bob.UserID.String()}}))
	assert.ElementsMatch(t, []uuid.UUID{started.ID}, list(url.Values{"status": {"in_progress"}}))

	window := url.Values{
		"due_date_start": {now.Format(time.RFC3339)},
		"due_date_end":   {now.Add(2 * time.Hour).Format(time.RFC3339)},
	}
	assert.ElementsMatch(t, []uuid.UUID{soon.ID}, list(window))

	// The date range wins over the other parameters.
	window.Set("status", "IN_PROGRESS")
	window.Set("user_id", bob.UserID.String())
	assert.ElementsMatch(t, []uuid.UUID{soon.ID}, list(window))

	rr = env.do(t, http.MethodGet, "/api/tasks/my", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.ElementsMatch(t, []uuid.UUID{later.ID}, taskIDs(decode[[]api.TaskResponse](t, rr)))

	rr = env.do(t, http.MethodGet, "/api/tasks?status=DONE", alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	inverted := url.Values{
		"due_date_start": {now.Add(time.Hour).Format(time.RFC3339)},
		"due_date_end":   {now.Format(time.RFC3339)},
	}
	rr = env.do(t, http.MethodGet, "/api/tasks?"+inverted.Encode(), alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, adminUsername)
	user := env.register(t, "alice")
	assert.Equal(t, domain.UserRoleUser, user.Role)
	assert.NotEmpty(t, user.ExpiresAt)

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "correct horse battery",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.ElementsMatch(t, []string{"username", "email", "password"}, fields(decode[errorBody](t, rr).Details))

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[api.AuthResponse](t, rr)
	assert.Equal(t, user.UserID, login.UserID)

	rr = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	refreshed := decode[api.AuthResponse](t, rr)
	assert.NotEmpty(t, refreshed.AccessToken)

	rr = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": login.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/tasks", login.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/users/me", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[api.UserResponse](t, rr)
	assert.Equal(t, "alice", me.Username)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = env.do(t, http.MethodGet, "/api/users", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]api.UserResponse](t, rr), 2)

	env.users.Remove(user.UserID)
	rr = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}
