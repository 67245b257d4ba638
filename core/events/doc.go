// Package events defines the domain events published on the event bus after a
// transaction commits.
//
// Available event types:
//   - ScheduleEvent: a schedule was created, rejected, updated, cancelled or deleted
//   - PositionEvent: a position report was stored
//   - AlertEvent: a notification intent was emitted
package events
