package domain

import "time"

// DateLayout is the calendar-date storage format. Phase dates are day-granular
// and inclusive on both ends; they are normalized to UTC midnight in memory.
const DateLayout = "2006-01-02"

type Project struct {
	ID         string
	Name       string
	StartDate  time.Time
	TargetDate *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Phase struct {
	ID            string
	ProjectID     string
	Name          string
	StartDate     time.Time
	EndDate       time.Time
	SequenceOrder int
	Locked        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DurationDays returns the phase length as a day delta (end - start).
// A single-day phase has a delta of zero.
func (p *Phase) DurationDays() int {
	return DaysBetween(p.StartDate, p.EndDate)
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays returns the calendar date n days after d (n may be negative).
func AddDays(d time.Time, n int) time.Time {
	return Date(d).AddDate(0, 0, n)
}

// DaysBetween returns the signed number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)) / (24 * time.Hour))
}
