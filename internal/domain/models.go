// Package domain defines the core data structures of the sleep journal.
// It contains the journal records and the small value types they are built from.
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the on-disk and command-line form of a calendar date.
const DateLayout = "2006-01-02"

// ClockLayout is the on-disk and command-line form of a time of day.
const ClockLayout = "15:04"

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the calendar date of t in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current local date.
func Today() Date {
	return NewDate(time.Now())
}

// ParseDate parses a yyyy-mm-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return NewDate(t), nil
}

// String formats the date as yyyy-mm-dd.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Time().AddDate(0, 0, n))
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:mm string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the time as HH:mm.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the minutes elapsed since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MetricValue is one recorded value of a named metric.
type MetricValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Entry is one journal record for one night.
type Entry struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Date      Date          `json:"date"`
	Bedtime   TimeOfDay     `json:"bedtime"`
	WakeTime  TimeOfDay     `json:"wake_time"`
	Notes     string        `json:"notes"`
	Metrics   []MetricValue `json:"metrics"`
}

// SleepDuration is the time between bedtime and wake time. A wake time that
// is not later than the bedtime falls on the following day.
func (e *Entry) SleepDuration() time.Duration {
	minutes := e.WakeTime.Minutes() - e.Bedtime.Minutes()
	if minutes <= 0 {
		minutes += 24 * 60
	}
	return time.Duration(minutes) * time.Minute
}

// SleepHours is SleepDuration in fractional hours.
func (e *Entry) SleepHours() float64 {
	return e.SleepDuration().Hours()
}

// Metric returns the value recorded for name.
func (e *Entry) Metric(name string) (float64, bool) {
	for _, m := range e.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Summary projects the entry into its index record.
func (e *Entry) Summary() SummaryRecord {
	metrics := make(map[string]float64, len(e.Metrics))
	for _, m := range e.Metrics {
		metrics[m.Name] = m.Value
	}
	return SummaryRecord{
		ID:         e.ID,
		Date:       e.Date,
		SleepHours: e.SleepHours(),
		Metrics:    metrics,
	}
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Metrics = append([]MetricValue(nil), e.Metrics...)
	return &c
}

// SummaryRecord is the index projection of an Entry.
type SummaryRecord struct {
	ID         string             `json:"id,omitempty"`
	Date       Date               `json:"date"`
	SleepHours float64            `json:"sleep_hours"`
	Metrics    map[string]float64 `json:"metrics"`
}

// HasID reports whether the record points at an id-keyed entry. Records
// written before identifiers existed carry an empty ID.
func (r SummaryRecord) HasID() bool {
	return r.ID != ""
}

// MetricKind is the value kind of a metric.
type MetricKind uint8

const (
	// MetricBinary is a yes/no presence flag stored as 0 or 1.
	MetricBinary MetricKind = iota
	// MetricCount is a non-negative integer count.
	MetricCount
	// MetricQuantity is a decimal amount with a unit.
	MetricQuantity
)

func (k MetricKind) String() string {
	switch k {
	case MetricCount:
		return "Count"
	case MetricQuantity:
		return "Quantity"
	default:
		return "Binary"
	}
}

// ParseMetricKind parses a kind name, case-insensitively.
func ParseMetricKind(s string) (MetricKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "":
		return MetricBinary, nil
	case "count":
		return MetricCount, nil
	case "quantity":
		return MetricQuantity, nil
	}
	return MetricBinary, fmt.Errorf("unknown metric kind %q", s)
}

// MetricDefinition describes a trackable metric.
type MetricDefinition struct {
	Name string     `json:"name"`
	Kind MetricKind `json:"kind"`
	Unit string     `json:"unit,omitempty"`
}

// ColumnName returns a tabular column name for the metric.
func (m MetricDefinition) ColumnName() string {
	name := strings.NewReplacer(" ", "_", "/", "_", ",", "").Replace(m.Name)
	if m.Kind == MetricBinary {
		return name
	}
	return name + "_" + strings.ReplaceAll(m.Unit, " ", "_")
}

// DefaultMetrics is the metric set offered before the user defines one.
func DefaultMetrics() []MetricDefinition {
	names := []string{
		"Insomnia", "Snoring", "Nightmares", "Restless",
		"Tired upon waking", "Difficulty falling asleep",
		"Woke up during night", "Sleep apnea symptoms",
		"Stress/Anxiety", "Caffeine before bed",
		"Alcohol consumption", "Exercise during day",
		"Screen time before bed", "Room too hot/cold",
	}
	defs := make([]MetricDefinition, len(names))
	for i, n := range names {
		defs[i] = MetricDefinition{Name: n, Kind: MetricBinary}
	}
	return defs
}

// DateRange is an inclusive date range. A zero bound is open.
type DateRange struct {
	From Date
	To   Date
}

// Contains reports whether d lies within the range.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// Account is a registered journal user.
type Account struct {
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// Operation represents an audit log operation
type Operation struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	EntryID   string    `json:"entry_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

// Audit operation types
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpCommit         = "commit"
	OpDelete         = "delete"
	OpMigrate        = "migrate"
	OpReconcile      = "reconcile"
	OpRotatePassword = "rotate_password"
	OpMetrics        = "metrics"
)

// Account constraints
const (
	MinUsernameLength = 3
	MinPasswordLength = 4
)

var (
	// ErrInvalidUsername is returned for usernames that cannot name a data directory
	ErrInvalidUsername = errors.New("username must be at least 3 characters of letters, digits, '_', '.' or '-'")
	// ErrPasswordTooShort is returned for passwords under MinPasswordLength
	ErrPasswordTooShort = errors.New("password must be at least 4 characters")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateUsername checks the username is usable as a directory name.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || !usernamePattern.MatchString(username) ||
		strings.Trim(username, ".") == "" {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
