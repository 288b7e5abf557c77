// Package model defines the core milestone tracking data types.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Domain is the developmental area a milestone belongs to.
type Domain string

const (
	DomainMotor    Domain = "motor"
	DomainLanguage Domain = "language"
	DomainSocial   Domain = "social"
)

// AgeWindow is the applicable age range of a milestone in whole months.
type AgeWindow struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Typical int `json:"typical"`
}

// Contains reports whether ageMonths falls inside the window, bounds inclusive.
func (w AgeWindow) Contains(ageMonths int) bool {
	return w.Min <= ageMonths && ageMonths <= w.Max
}

// Validate checks min <= typical <= max and non-negative bounds.
func (w AgeWindow) Validate() error {
	if w.Min < 0 {
		return fmt.Errorf("min age %d is negative", w.Min)
	}
	if w.Min > w.Typical || w.Typical > w.Max {
		return fmt.Errorf("window must satisfy min <= typical <= max, got %d/%d/%d", w.Min, w.Typical, w.Max)
	}
	return nil
}

// Milestone is an immutable milestone definition from the catalog.
type Milestone struct {
	ID               string    `json:"milestone_id"`
	AgeWindow        AgeWindow `json:"age_range_months"`
	Domain           Domain    `json:"domain"`
	Subdomain        string    `json:"subdomain"`
	Description      string    `json:"milestone_description"`
	RedFlag          bool      `json:"red_flag"`
	AssessmentMethod string    `json:"assessment_method,omitempty"`
}

// Answer is a caregiver response. Unanswered is distinct from No.
type Answer int8

const (
	Unanswered Answer = iota
	Yes
	No
)

// AnswerOf converts a boolean caregiver response.
func AnswerOf(v bool) Answer {
	if v {
		return Yes
	}
	return No
}

func (a Answer) String() string {
	switch a {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unanswered"
	}
}

// MarshalJSON encodes Yes/No as booleans and Unanswered as null.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false or null.
func (a *Answer) UnmarshalJSON(b []byte) error {
	var v *bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*a = Unanswered
		return nil
	}
	*a = AnswerOf(*v)
	return nil
}

// EvidenceRef points at captured media. The media bytes are never owned here.
type EvidenceRef struct {
	Reference  string    `json:"reference"`
	CapturedAt time.Time `json:"captured_at"`
}

// Child is the active child context of a profile.
type Child struct {
	AgeMonths int    `json:"age_months"`
	Name      string `json:"child_name"`
}

// DefaultChildName is submitted when the caregiver has not named the child.
const DefaultChildName = "Your Child"

// Status is a developmental-status outcome.
type Status string

const (
	StatusOnTrack        Status = "on_track"
	StatusNeedsSupport   Status = "needs_support"
	StatusReferralNeeded Status = "referral_needed"
)

// EvaluationResult is the outcome of one reconciliation call. Never persisted.
type EvaluationResult struct {
	Status       Status    `json:"status"`
	Message      string    `json:"message"`
	CompletedIDs []string  `json:"completed_ids"`
	AgeMonths    int       `json:"age_months"`
	RequestID    string    `json:"request_id,omitempty"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// ValidLanguages are the supported display languages.
var ValidLanguages = map[string]bool{
	"en": true,
	"hi": true,
}

// DefaultLanguage is used until the caregiver picks one.
const DefaultLanguage = "en"
