package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is the AM/PM half of the entered wall-clock time.
type Period string

const (
	PeriodAM Period = "AM"
	PeriodPM Period = "PM"
)

// CTAType is the call-to-action shown to viewers.
type CTAType string

const (
	CTABook CTAType = "book"
	CTABuy  CTAType = "buy"
)

// DateLayout is the layout of Webinar.Date.
const DateLayout = "2006-01-02"

// Webinar is one registry record. JSON names follow the stored array shape.
// Records are replaced whole, never patched.
type Webinar struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Date         string    `json:"date"`   // yyyy-mm-dd
	Time         string    `json:"time"`   // HH:mm
	Period       Period    `json:"period"` // AM | PM
	CTALabel     string    `json:"ctaLabel,omitempty"`
	Tags         string    `json:"tags,omitempty"`
	CTAType      CTAType   `json:"ctaType,omitempty"`
	Product      string    `json:"product,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	StreamCallID string    `json:"streamCallId,omitempty"`
	StreamToken  string    `json:"streamToken,omitempty"`
	HostID       string    `json:"hostId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasStream reports whether a livestream call was provisioned for the webinar.
func (w *Webinar) HasStream() bool {
	return w.StreamCallID != ""
}

// IsHostRecord reports whether the record carries a host credential.
func (w *Webinar) IsHostRecord() bool {
	return w.StreamToken != ""
}

// Public returns a copy safe to hand to any visitor: the host credential is removed.
func (w Webinar) Public() Webinar {
	w.StreamToken = ""
	return w
}

// ScheduledStart combines Date, Time and Period into one instant in loc.
func (w *Webinar) ScheduledStart(loc *time.Location) (time.Time, error) {
	return ScheduledStart(w.Date, w.Time, w.Period, loc)
}

// ScheduledStart combines a yyyy-mm-dd date, an HH:mm time and a period into one instant.
// The hour is taken modulo 12 and shifted by 12 for PM, so "12:15 AM" is 00:15 and
// "12:15 PM" is 12:15. An empty time defaults to 12:00.
func ScheduledStart(date, clock string, period Period, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if clock == "" {
		clock = "12:00"
	}
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return time.Time{}, fmt.Errorf("parse time %q: expected HH:mm", clock)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("parse time %q: invalid hour", clock)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("parse time %q: invalid minute", clock)
	}
	hour %= 12
	if period == PeriodPM {
		hour += 12
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}
