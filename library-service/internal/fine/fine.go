// Package fine computes overdue fines for borrowed books.
package fine

import (
	"errors"
	"time"
)

const DefaultPerDay = 5

var ErrIssueInFuture = errors.New("issueDate must be in the past")

const secondsPerDay = 24 * 60 * 60

// Calculate charges perDay for every whole day that has passed since the
// expiry date. The issue date only has to lie in the past; it does not
// shift the start of the overdue period.
func Calculate(issue, expiry, now time.Time, perDay int) (int, error) {
	if now.Before(issue) {
		return 0, ErrIssueInFuture
	}
	days := int(elapsedSeconds(expiry, now) / secondsPerDay)
	if days <= 0 {
		return 0, nil
	}
	return days * perDay, nil
}

// elapsedSeconds counts whole seconds from a to b. time.Duration would
// saturate after about 292 years.
func elapsedSeconds(a, b time.Time) int64 {
	secs := b.Unix() - a.Unix()
	if b.Nanosecond() < a.Nanosecond() {
		secs--
	}
	return secs
}

// Calculator binds a rate and a clock to Calculate.
type Calculator struct {
	PerDay int
	Now    func() time.Time
}

func NewCalculator(perDay int, now func() time.Time) *Calculator {
	if perDay <= 0 {
		perDay = DefaultPerDay
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{PerDay: perDay, Now: now}
}

func (c *Calculator) Fine(issue, expiry time.Time) (int, error) {
	return Calculate(issue, expiry, c.Now(), c.PerDay)
}
