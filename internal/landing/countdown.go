// Package landing builds the public landing page of a webinar: schedule, countdown and the
// join affordance once the start time has passed.
package landing

import (
	"context"
	"time"
)

// Countdown is the time left until the scheduled start, split into display units.
type Countdown struct {
	Days     int64 `json:"days"`
	Hours    int64 `json:"hours"`
	Minutes  int64 `json:"minutes"`
	Seconds  int64 `json:"seconds"`
	Finished bool  `json:"finished"`
}

// Remaining returns the countdown as a duration.
func (c Countdown) Remaining() time.Duration {
	return time.Duration(c.Days)*24*time.Hour + time.Duration(c.Hours)*time.Hour +
		time.Duration(c.Minutes)*time.Minute + time.Duration(c.Seconds)*time.Second
}

// CountdownAt returns the countdown from now to start, floored to whole seconds.
// It is finished once now reaches start; in the last second before that every unit is zero
// but Finished stays false.
func CountdownAt(start, now time.Time) Countdown {
	if !now.Before(start) {
		return Countdown{Finished: true}
	}
	r := int64(start.Sub(now) / time.Second)
	return Countdown{
		Days:    r / 86400,
		Hours:   (r / 3600) % 24,
		Minutes: (r / 60) % 60,
		Seconds: r % 60,
	}
}

// Tick calls fn immediately and then on every interval until fn returns false or ctx ends.
func Tick(ctx context.Context, interval time.Duration, fn func(now time.Time) bool) {
	if !fn(time.Now()) {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !fn(now) {
				return
			}
		}
	}
}
