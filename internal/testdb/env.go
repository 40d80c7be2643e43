//go:build integration

package testdb

import (
	"net/url"
	"os"
)

var databaseURLVars = []string{"DATABASE_URL", "TASKTRACKER_TEST_DB_URL", "TASKTRACKER_DATABASE_URL"}

// GetTestDatabaseURL returns the first database URL found in the environment.
func GetTestDatabaseURL() string {
	for _, name := range databaseURLVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ShouldSkipDatabaseTest reports whether no database URL is configured.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

// maskDatabaseURL hides the password in a connection URL.
func maskDatabaseURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "[unparseable database URL]"
	}
	return u.Redacted()
}
