package llm

import (
	"fmt"
	"strings"
	"time"
)

// ModeAuto walks every configured provider in priority order.
const ModeAuto = "auto"

// Provider describes one upstream chat-completion endpoint.
// Instances are built once at startup and never mutated afterwards.
type Provider struct {
	Name     string
	Endpoint string
	APIKey   string
	Model    string
	// Timeout overrides the computed per-attempt budget when > 0.
	Timeout time.Duration
}

// Registry holds the ordered provider list plus the selection mode.
type Registry struct {
	providers []Provider
	forced    string
}

// NewRegistry validates the configured providers and the selection mode.
// Mode is either ModeAuto or the name of a single forced provider.
func NewRegistry(providers []Provider, mode string) (*Registry, error) {
	usable := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if strings.TrimSpace(p.APIKey) == "" {
			continue
		}
		if strings.TrimSpace(p.Endpoint) == "" || strings.TrimSpace(p.Model) == "" {
			return nil, fmt.Errorf("provider %q missing endpoint or model", p.Name)
		}
		usable = append(usable, p)
	}
	if len(usable) == 0 {
		return nil, ErrNoProviders
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeAuto
	}
	if mode != ModeAuto {
		found := false
		for _, p := range usable {
			if strings.EqualFold(p.Name, mode) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("forced provider %q has no usable credential: %w", mode, ErrNoProviders)
		}
	}
	return &Registry{providers: usable, forced: mode}, nil
}

// Ordered returns the attempt order: the forced provider alone, or the
// full priority list in auto mode.
func (r *Registry) Ordered() []Provider {
	if r.forced != ModeAuto {
		for _, p := range r.providers {
			if strings.EqualFold(p.Name, r.forced) {
				return []Provider{p}
			}
		}
	}
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Forced reports whether a single provider selection is in effect.
func (r *Registry) Forced() bool {
	return r.forced != ModeAuto
}
