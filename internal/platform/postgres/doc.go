// Package postgres provides PostgreSQL implementations of the store
// interfaces, plus the embedded goose migrations for the schema.
// Queries go through database/sql using the pgx stdlib driver.
package postgres
