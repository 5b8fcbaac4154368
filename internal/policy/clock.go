package policy

import "time"

// Clock abstracts time for testability
type Clock interface {
	Now() time.Time
}

// RealClock uses the system time
type RealClock struct{}

// Now returns the current system time
func (RealClock) Now() time.Time {
	return time.Now()
}

// TestClock returns a fixed time for testing
type TestClock struct {
	Time time.Time
}

// Now returns the fixed test time
func (c *TestClock) Now() time.Time {
	return c.Time
}
