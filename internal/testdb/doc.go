// Package testdb provides helpers for tests that run against a real
// PostgreSQL database. It is only compiled with the integration build tag.
//
// Tests locate the database through DATABASE_URL (or the
// TASKTRACKER_TEST_DB_URL / TASKTRACKER_DATABASE_URL fallbacks) and skip
// themselves when none is set:
//
//	db := testdb.GetTestDBWithT(t)
//	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//		users := postgres.NewPostgresUserStore(tx, nil)
//		...
//	})
package testdb
