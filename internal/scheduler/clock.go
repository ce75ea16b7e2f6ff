package scheduler

import "time"

// Clock is the scheduler's source of the current time.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var systemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
