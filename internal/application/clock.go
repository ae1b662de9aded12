package application

import "time"

// Clock abstraction so services are easy to test
type Clock interface {
	Now() time.Time
}

// SystemClock default implementation backed by time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
