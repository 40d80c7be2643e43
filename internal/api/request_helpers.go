package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/service"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// Query parameters accepted by GET /tasks
const (
	queryDueDateStart = "due_date_start"
	queryDueDateEnd   = "due_date_end"
	queryUserID       = "user_id"
	queryStatus       = "status"
)

// getPathUUID parses the named chi path parameter as a UUID.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, service.NewValidationError(paramName, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, service.NewValidationError(paramName, "must be a UUID")
	}
	return id, nil
}

// requireUserID returns the authenticated user ID or writes a 401.
func requireUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, false
	}
	return userID, true
}

// ParseTaskFilter maps the GET /tasks query to a single filter. Exactly one
// dimension applies, chosen in order: a complete due date range, then
// user_id, then status, then none. A range with only one end is ignored.
func ParseTaskFilter(q url.Values) (store.TaskFilter, error) {
	start := strings.TrimSpace(q.Get(queryDueDateStart))
	end := strings.TrimSpace(q.Get(queryDueDateEnd))
	if start != "" && end != "" {
		problems := &service.ValidationError{}
		from, err := time.Parse(time.RFC3339, start)
		if err != nil {
			problems.Add(queryDueDateStart, "must be an RFC 3339 timestamp")
		}
		to, err := time.Parse(time.RFC3339, end)
		if err != nil {
			problems.Add(queryDueDateEnd, "must be an RFC 3339 timestamp")
		}
		if err := problems.OrNil(); err != nil {
			return store.TaskFilter{}, err
		}
		return store.TasksDueBetween(from, to), nil
	}

	if raw := strings.TrimSpace(q.Get(queryUserID)); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return store.TaskFilter{}, service.NewValidationError(queryUserID, "must be a UUID")
		}
		return store.TasksByAssignee(userID), nil
	}

	if raw := strings.TrimSpace(q.Get(queryStatus)); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return store.TaskFilter{}, service.NewValidationError(queryStatus, err.Error())
		}
		return store.TasksByStatus(status), nil
	}

	return store.AllTasks(), nil
}
