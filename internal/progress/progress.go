// Package progress derives completion counts and red-flag violations from the
// catalog and a set of caregiver answers.
package progress

import (
	"sort"
	"sync"

	"github.com/rcliao/milestone-tracker/internal/catalog"
	"github.com/rcliao/milestone-tracker/internal/model"
)

// Answers is the read side of a response set.
type Answers interface {
	Get(id string) model.Answer
}

// DomainSummary counts one domain's in-scope milestones.
type DomainSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// Summary is the derived progress for one age.
type Summary struct {
	AgeMonths         int                            `json:"age_months"`
	TotalInScope      int                            `json:"total_in_scope"`
	CompletedCount    int                            `json:"completed_count"`
	Percentage        float64                        `json:"percentage"`
	RedFlagViolations []string                       `json:"red_flag_violations"`
	Missing           []string                       `json:"missing"`
	Domains           map[model.Domain]DomainSummary `json:"domains"`
}

// Calculate computes progress for ageMonths. Completion counts only in-scope
// milestones answered Yes. A red-flag violation is a red-flag milestone whose
// upper bound the child has reached (ageMonths >= max) and that was answered
// No; unanswered milestones never count. Missing lists the in-scope
// milestones not answered Yes, sorted by id.
func Calculate(cat *catalog.Catalog, answers Answers, ageMonths int) Summary {
	s := Summary{
		AgeMonths:         ageMonths,
		RedFlagViolations: []string{},
		Missing:           []string{},
		Domains:           map[model.Domain]DomainSummary{},
	}

	for _, m := range cat.InScope(ageMonths) {
		d := s.Domains[m.Domain]
		d.Total++
		s.TotalInScope++
		if answers.Get(m.ID) == model.Yes {
			d.Completed++
			s.CompletedCount++
		} else {
			s.Missing = append(s.Missing, m.ID)
		}
		s.Domains[m.Domain] = d
	}

	if s.TotalInScope > 0 {
		s.Percentage = float64(s.CompletedCount) / float64(s.TotalInScope) * 100
	}
	sort.Strings(s.Missing)

	for _, m := range cat.All() {
		if m.RedFlag && ageMonths >= m.AgeWindow.Max && answers.Get(m.ID) == model.No {
			s.RedFlagViolations = append(s.RedFlagViolations, m.ID)
		}
	}
	return s
}

// VersionedAnswers is an answer set that reports a version bumped on every change.
type VersionedAnswers interface {
	Answers
	AnswersVersion() uint64
}

type memoKey struct {
	age     int
	version uint64
	catalog string
}

// Calculator memoizes Calculate on (age, answers version, catalog version).
type Calculator struct {
	catalog *catalog.Catalog

	mu   sync.Mutex
	key  memoKey
	last *Summary
}

// NewCalculator creates a memoizing calculator over cat.
func NewCalculator(cat *catalog.Catalog) *Calculator {
	return &Calculator{catalog: cat}
}

// Summary returns the progress for ageMonths, recomputing only when the age or
// the answers version changed since the previous call.
func (c *Calculator) Summary(answers VersionedAnswers, ageMonths int) Summary {
	key := memoKey{age: ageMonths, version: answers.AnswersVersion(), catalog: c.catalog.Version()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil && c.key == key {
		return *c.last
	}
	s := Calculate(c.catalog, answers, ageMonths)
	c.key = key
	c.last = &s
	return s
}
