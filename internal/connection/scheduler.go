package connection

import "time"

// Task is a pending scheduled call.
type Task interface {
	// Stop prevents the call from running. Returns false if it already ran
	// or was stopped.
	Stop() bool
}

// Scheduler runs a function after a delay. Implementations must never run fn
// synchronously inside AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Task
}

// RealScheduler returns a Scheduler backed by time.AfterFunc.
func RealScheduler() Scheduler {
	return realScheduler{}
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Task {
	return time.AfterFunc(d, fn)
}
