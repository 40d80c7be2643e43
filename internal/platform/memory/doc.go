// Package memory provides mutex-guarded in-process implementations of the
// store interfaces. They back the "memory" storage driver and the service
// and API tests.
package memory
