package dispatch

import (
	"github.com/mb0/glob"
	"github.com/rs/zerolog/log"
)

// Allowlist restricts which services the backend may invoke. Patterns are
// globs over the domain.service name, e.g. "light.*" or
// "media_player.play_media". A nil or empty allowlist admits everything.
type Allowlist struct {
	patterns []string
}

func NewAllowlist(patterns []string) *Allowlist {
	return &Allowlist{patterns: patterns}
}

func (a *Allowlist) Allowed(name string) bool {
	if a == nil || len(a.patterns) == 0 {
		return true
	}

	for _, pattern := range a.patterns {
		matching, err := glob.Match(pattern, name)
		if err != nil {
			log.Warn().Str("pattern", pattern).Err(err).Msg("bad allowlist pattern")
			continue
		}
		if matching {
			return true
		}
	}

	return false
}
