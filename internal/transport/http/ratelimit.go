package http

import "time"

// frameLimiter caps inbound frames per connection per minute. A zero or
// negative limit disables it.
type frameLimiter struct {
	limit   int
	counter int
	reset   *time.Ticker
}

func newFrameLimiter(limit int) *frameLimiter {
	if limit <= 0 {
		return &frameLimiter{}
	}
	return &frameLimiter{
		limit: limit,
		reset: time.NewTicker(time.Minute),
	}
}

func (f *frameLimiter) allow() bool {
	if f.limit <= 0 {
		return true
	}
	select {
	case <-f.reset.C:
		f.counter = 0
	default:
	}
	f.counter++
	return f.counter <= f.limit
}

func (f *frameLimiter) stop() {
	if f.reset != nil {
		f.reset.Stop()
	}
}
