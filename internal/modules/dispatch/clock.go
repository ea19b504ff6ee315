package dispatch

import "time"

// Clock abstracts wall time and deadline timers so queue expiry is testable
// without sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the stoppable handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// RealClock returns the wall-time Clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
