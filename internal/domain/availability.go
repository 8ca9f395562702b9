package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// MinuteOfDay is a wall-clock time expressed as minutes since midnight.
type MinuteOfDay int

const minutesPerDay MinuteOfDay = 24 * 60

// ParseMinuteOfDay parses "HH:MM". "24:00" is accepted as the end of the day.
func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, Errorf(ErrInvalidWindow, "time %q is not HH:MM", s)
	}
	for _, c := range s[:2] + s[3:] {
		if c < '0' || c > '9' {
			return 0, Errorf(ErrInvalidWindow, "time %q is not HH:MM", s)
		}
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, Errorf(ErrInvalidWindow, "time %q out of range", s)
	}
	return MinuteOfDay(h*60 + m), nil
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m MinuteOfDay) Valid() bool {
	return m >= 0 && m <= minutesPerDay
}

// MarshalText renders the HH:MM external representation.
func (m MinuteOfDay) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MinuteOfDay) UnmarshalText(b []byte) error {
	v, err := ParseMinuteOfDay(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Date is a calendar day without a time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, Errorf(ErrInvalidDate, "date %q is not YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// At returns the instant of minute m on this date in loc.
func (d Date) At(m MinuteOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, int(m)/60, int(m)%60, 0, 0, loc)
}

// Time returns midnight UTC, the storage representation of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Availability is a doctor-declared window on a date within which slots are offered.
type Availability struct {
	ID          uuid.UUID   `json:"id"`
	DoctorID    uuid.UUID   `json:"doctorId"`
	Date        Date        `json:"date"`
	StartTime   MinuteOfDay `json:"startTime"`
	EndTime     MinuteOfDay `json:"endTime"`
	IsAvailable bool        `json:"isAvailable"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Overlaps reports whether two windows on the same date intersect (half-open).
func (a *Availability) Overlaps(o *Availability) bool {
	return a.Date == o.Date && a.StartTime < o.EndTime && a.EndTime > o.StartTime
}

// Slot is a derived, never persisted, bookable interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
