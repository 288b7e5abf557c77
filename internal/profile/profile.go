// Package profile persists the active child context and display language.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/store"
)

// DefaultAgeMonths is the tab the checklist opens on.
const DefaultAgeMonths = 12

// Profile is the per-profile child context and language preference.
type Profile struct {
	backend store.Persistence
	name    string

	mu       sync.RWMutex
	child    model.Child
	language string
}

// Load reads the profile, falling back to defaults for records never written.
func Load(ctx context.Context, backend store.Persistence, name string) (*Profile, error) {
	if err := store.ValidateProfile(name); err != nil {
		return nil, model.NewError(model.KindInvalidInput, err, "load profile")
	}

	p := &Profile{
		backend:  backend,
		name:     name,
		child:    model.Child{AgeMonths: DefaultAgeMonths, Name: model.DefaultChildName},
		language: model.DefaultLanguage,
	}

	data, err := backend.Load(ctx, name, store.RecordChild)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load child: %w", err)
	default:
		if err := json.Unmarshal(data, &p.child); err != nil {
			return nil, fmt.Errorf("decode child: %w", err)
		}
	}

	data, err = backend.Load(ctx, name, store.RecordLanguage)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load language: %w", err)
	default:
		var lang string
		if err := json.Unmarshal(data, &lang); err == nil && model.ValidLanguages[lang] {
			p.language = lang
		}
	}

	if p.child.AgeMonths < 0 {
		p.child.AgeMonths = DefaultAgeMonths
	}
	if p.child.Name == "" {
		p.child.Name = model.DefaultChildName
	}
	return p, nil
}

// Name returns the profile name.
func (p *Profile) Name() string { return p.name }

// Child returns the active child context.
func (p *Profile) Child() model.Child {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.child
}

// SetAge selects the child's age in months.
func (p *Profile) SetAge(ctx context.Context, ageMonths int) error {
	if ageMonths < 0 {
		return model.NewError(model.KindInvalidInput, nil, "age %d is negative", ageMonths)
	}
	return p.updateChild(ctx, func(c *model.Child) { c.AgeMonths = ageMonths })
}

// SetChildName sets the name submitted with evaluations.
func (p *Profile) SetChildName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultChildName
	}
	return p.updateChild(ctx, func(c *model.Child) { c.Name = name })
}

func (p *Profile) updateChild(ctx context.Context, apply func(*model.Child)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.child
	apply(&next)
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := p.backend.Save(ctx, p.name, store.RecordChild, data); err != nil {
		return model.NewError(model.KindPersistenceWrite, err, "save child")
	}
	p.child = next
	return nil
}

// Language returns the display language code.
func (p *Profile) Language() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.language
}

// SetLanguage stores a two-letter display language code.
func (p *Profile) SetLanguage(ctx context.Context, code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if !model.ValidLanguages[code] {
		return model.NewError(model.KindInvalidInput, nil, "unsupported language %q", code)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	data, _ := json.Marshal(code)
	if err := p.backend.Save(ctx, p.name, store.RecordLanguage, data); err != nil {
		return model.NewError(model.KindPersistenceWrite, err, "save language")
	}
	p.language = code
	return nil
}

// ToggleLanguage switches between English and Hindi.
func (p *Profile) ToggleLanguage(ctx context.Context) (string, error) {
	next := "hi"
	if p.Language() == "hi" {
		next = "en"
	}
	if err := p.SetLanguage(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}
