// Package overdue finds tasks whose due date has passed and moves them to
// the OVERDUE status.
//
// A Sweeper performs one pass. A Scheduler runs the Sweeper on a cron
// schedule and exposes a manual trigger; at most one pass runs at a time
// across both entry points.
package overdue
