// Package domain contains the core business entities of the task tracker:
// tasks with their lifecycle statuses, and the users tasks are assigned to.
// It is independent of storage and transport.
package domain
