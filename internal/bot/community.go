package bot

import (
	"fmt"
	"math/rand"

	"github.com/listkeeper/listkeeper/internal/config"
	"github.com/listkeeper/listkeeper/internal/eligibility"
	"github.com/listkeeper/listkeeper/internal/game"
	"github.com/listkeeper/listkeeper/internal/service"
)

// Community is the runtime state for one configured project.
type Community struct {
	Project   config.Project
	Registrar *service.Registrar
	Oracle    *game.Oracle
	Slot      *game.Slot

	adminRoles        map[string]bool
	allowlistChannels map[string]bool
	gameChannels      map[string]bool
}

// NewCommunity builds the registrar and games for p. Both games draw from one
// Source over rng; a nil rng seeds it from the clock.
func NewCommunity(p config.Project, entries *service.EntryService, rng *rand.Rand) (*Community, error) {
	resolver, err := eligibility.New(p.RecognizedRoles, p.Policy)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", p.Name, err)
	}
	src := game.NewSource(rng)
	oracle, err := game.NewOracle(p.OracleOdds, src)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", p.Name, err)
	}
	slot, err := game.NewSlot(p.SlotSymbols, src)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", p.Name, err)
	}

	return &Community{
		Project:           p,
		Registrar:         entries.Registrar(p.Name, resolver),
		Oracle:            oracle,
		Slot:              slot,
		adminRoles:        toSet(p.AdminRoles),
		allowlistChannels: toSet(p.AllowlistChannels),
		gameChannels:      toSet(p.GameChannels),
	}, nil
}

// isAdmin reports whether any of roles is an admin role.
func (c *Community) isAdmin(roles []string) bool {
	for _, r := range roles {
		if c.adminRoles[r] {
			return true
		}
	}
	return false
}

// allows reports whether a command of scope may run in channel.
// A project that lists no channels for a scope allows every channel.
func (c *Community) allows(scope channelScope, channel string) bool {
	var set map[string]bool
	switch scope {
	case scopeAllowlist:
		set = c.allowlistChannels
	case scopeGame:
		set = c.gameChannels
	default:
		return true
	}
	return len(set) == 0 || set[channel]
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
