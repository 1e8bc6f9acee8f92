package sched

import "errors"

var (
	// ErrResourceExhausted is returned when the fixed task table is full.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrConfiguration rejects invalid periods, priorities, names or tags before admission.
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("task not found")
	ErrNotStarted    = errors.New("kernel not started")
	ErrStopped       = errors.New("kernel stopped")
	// ErrAccountingAnomaly signals a utilization reading outside [0, 100].
	// It is a programming defect, never a valid measurement.
	ErrAccountingAnomaly = errors.New("accounting anomaly")
)
