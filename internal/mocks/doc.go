// Package mocks provides shared test doubles for the store, service and
// auth interfaces. Store and directory mocks are testify mocks; the auth
// mocks use function fields with default return values.
package mocks
