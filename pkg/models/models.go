// Package models holds the plain, JSON-tagged wire and row types shared
// across the store, coordinator, and status-surface packages. No behavior
// lives here, matching the teacher's pkg/models/transaction.go.
package models

import "time"

// Task is the run-status record described in spec.md §3.
type Task struct {
	ID        int64      `json:"id"`
	BatchID   int32      `json:"batchId"`
	ClientID  *int32     `json:"clientId,omitempty"`
	PointID   int64      `json:"pointId"`
	Iteration uint8      `json:"iteration"`
	IsRunning bool       `json:"isRunning"`
	IsDone    bool       `json:"isDone"`
	HasError  bool       `json:"hasError"`
	ErrorInfo *string    `json:"errorInfo,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// PointRow is one row of points_working or points_known (spec.md §4.4). For
// points_known, IterationOrigin is always nil.
type PointRow struct {
	ID              int64
	XStr, YStr      string
	XD, YD          string
	IterationOrigin *int
}

// BatchStatus is the triple spec.md §4.4's batch_status operation returns.
type BatchStatus struct {
	LastCompleteIteration int
	IsCurrentlyRunning    bool
	AnyIncomplete         bool
}
