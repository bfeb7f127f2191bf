// Package seed loads household members from a YAML file. Users are matched
// by email, so applying the same file twice updates rather than duplicates.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/choregate/internal/access"
	"github.com/dukerupert/choregate/internal/model"
)

type Household struct {
	Users []Member `yaml:"users"`
}

type Member struct {
	Name        string     `yaml:"name"`
	Email       string     `yaml:"email"`
	Role        model.Role `yaml:"role"`
	DeviceMAC   string     `yaml:"device_mac"`
	NotifyEmail *bool      `yaml:"notify_email"`
	NotifyApp   *bool      `yaml:"notify_app"`
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Update(ctx context.Context, u *model.User) (*model.User, error)
}

type Report struct {
	Created int
	Updated int
}

// Parse decodes and validates a household file.
func Parse(r io.Reader) (*Household, error) {
	var h Household
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("household file is empty")
		}
		return nil, fmt.Errorf("decode household: %w", err)
	}

	seen := make(map[string]bool, len(h.Users))
	for i := range h.Users {
		m := &h.Users[i]
		m.Email = strings.ToLower(strings.TrimSpace(m.Email))
		switch {
		case strings.TrimSpace(m.Name) == "":
			return nil, fmt.Errorf("user %d: name is required", i+1)
		case m.Email == "":
			return nil, fmt.Errorf("user %q: email is required", m.Name)
		case !m.Role.Valid():
			return nil, fmt.Errorf("user %q: invalid role %q", m.Name, m.Role)
		case seen[m.Email]:
			return nil, fmt.Errorf("user %q: duplicate email %s", m.Name, m.Email)
		}
		seen[m.Email] = true
		if m.DeviceMAC != "" {
			mac, err := access.NormalizeMAC(m.DeviceMAC)
			if err != nil {
				return nil, fmt.Errorf("user %q: %w", m.Name, err)
			}
			m.DeviceMAC = mac
		}
	}
	return &h, nil
}

// Apply upserts every member of h. The internet access flag is never
// touched; it belongs to the chore engine.
func Apply(ctx context.Context, users UserStore, h *Household) (*Report, error) {
	report := &Report{}
	for _, m := range h.Users {
		existing, err := users.GetByEmail(ctx, m.Email)
		if err != nil {
			return report, fmt.Errorf("look up %s: %w", m.Email, err)
		}
		if existing == nil {
			u := &model.User{Name: m.Name, Email: m.Email, Role: m.Role, DeviceMAC: m.DeviceMAC, NotifyEmail: true, NotifyApp: true}
			apply(u, m)
			if _, err := users.Create(ctx, u); err != nil {
				return report, fmt.Errorf("create %s: %w", m.Email, err)
			}
			report.Created++
			continue
		}
		existing.Name = m.Name
		existing.Role = m.Role
		existing.DeviceMAC = m.DeviceMAC
		apply(existing, m)
		if _, err := users.Update(ctx, existing); err != nil {
			return report, fmt.Errorf("update %s: %w", m.Email, err)
		}
		report.Updated++
	}
	return report, nil
}

func apply(u *model.User, m Member) {
	if m.NotifyEmail != nil {
		u.NotifyEmail = *m.NotifyEmail
	}
	if m.NotifyApp != nil {
		u.NotifyApp = *m.NotifyApp
	}
}
