package models

import (
	"fmt"
	"strings"
)

// Planning holds the SCHEDULED / DEADLINE / CLOSED timestamps of a headline.
type Planning struct {
	Scheduled *Timestamp `json:"scheduled,omitempty"`
	Deadline  *Timestamp `json:"deadline,omitempty"`
	Closed    *Timestamp `json:"closed,omitempty"`
}

// IsEmpty reports whether no timestamp is set.
func (p *Planning) IsEmpty() bool {
	return p == nil || (p.Scheduled == nil && p.Deadline == nil && p.Closed == nil)
}

// String renders the planning line in org syntax, slots in a fixed order.
func (p *Planning) String() string {
	if p.IsEmpty() {
		return ""
	}
	var parts []string
	if p.Scheduled != nil {
		parts = append(parts, "SCHEDULED: "+p.Scheduled.Format())
	}
	if p.Deadline != nil {
		parts = append(parts, "DEADLINE: "+p.Deadline.Format())
	}
	if p.Closed != nil {
		parts = append(parts, "CLOSED: "+p.Closed.Format())
	}
	return strings.Join(parts, " ")
}

// TimestampKind distinguishes the timestamp shapes org supports.
type TimestampKind string

const (
	TimestampActive        TimestampKind = "active"
	TimestampInactive      TimestampKind = "inactive"
	TimestampActiveRange   TimestampKind = "active_range"
	TimestampInactiveRange TimestampKind = "inactive_range"
	TimestampDiary         TimestampKind = "diary"
)

// Timestamp is a point, a range or a diary (sexp) expression.
// Active timestamps drive date-based views; inactive ones are informational.
type Timestamp struct {
	Kind     TimestampKind `json:"kind"`
	Start    *Datetime     `json:"start,omitempty"`
	End      *Datetime     `json:"end,omitempty"`
	Repeater string        `json:"repeater,omitempty"`
	Delay    string        `json:"delay,omitempty"`
	Diary    string        `json:"diary,omitempty"`
}

// IsActive reports whether the timestamp affects date-based views.
func (t *Timestamp) IsActive() bool {
	switch t.Kind {
	case TimestampActive, TimestampActiveRange, TimestampDiary:
		return true
	}
	return false
}

// IsRange reports whether the timestamp spans two datetimes.
func (t *Timestamp) IsRange() bool {
	return t.Kind == TimestampActiveRange || t.Kind == TimestampInactiveRange
}

// Format renders the timestamp in org syntax.
func (t *Timestamp) Format() string {
	if t.Kind == TimestampDiary {
		return fmt.Sprintf("<%%%%(%s)>", t.Diary)
	}
	open, closing := "<", ">"
	if !t.IsActive() {
		open, closing = "[", "]"
	}
	suffix := ""
	if t.Repeater != "" {
		suffix += " " + t.Repeater
	}
	if t.Delay != "" {
		suffix += " " + t.Delay
	}
	if !t.IsRange() || t.End == nil {
		return open + t.Start.Format() + suffix + closing
	}
	if t.Start.SameDay(t.End) && t.Start.HasTime() && t.End.HasTime() {
		return open + t.Start.Format() + fmt.Sprintf("-%02d:%02d", *t.End.Hour, *t.End.Minute) + suffix + closing
	}
	return open + t.Start.Format() + suffix + closing + "--" + open + t.End.Format() + closing
}

// Datetime is a calendar date with an optional time of day.
type Datetime struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Day     int    `json:"day"`
	Dayname string `json:"dayname,omitempty"`
	Hour    *int   `json:"hour,omitempty"`
	Minute  *int   `json:"minute,omitempty"`
}

// SameDay reports whether both datetimes fall on the same calendar date.
func (d *Datetime) SameDay(o *Datetime) bool {
	return d.Year == o.Year && d.Month == o.Month && d.Day == o.Day
}

// HasTime reports whether a time of day is set.
func (d *Datetime) HasTime() bool { return d.Hour != nil && d.Minute != nil }

// Format renders "2023-05-10 Wed 14:30", omitting absent parts.
func (d *Datetime) Format() string {
	s := fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	if d.Dayname != "" {
		s += " " + d.Dayname
	}
	if d.HasTime() {
		s += fmt.Sprintf(" %02d:%02d", *d.Hour, *d.Minute)
	}
	return s
}
