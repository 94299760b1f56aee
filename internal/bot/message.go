// Package bot dispatches chat commands to the registration and game flows.
// It knows nothing about a particular chat platform; discord.go adapts one.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/listkeeper/listkeeper/internal/cache"
)

// Message is an inbound chat message from a guild channel.
type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	ChannelName string
	AuthorID    string
	AuthorName  string
	// Roles holds role names in the order the platform reports them.
	Roles    []string
	JoinedAt *time.Time
	Content  string
	// LookupErr is set when the platform could not resolve the member's
	// roles or the channel. Roles and ChannelName are then incomplete.
	LookupErr error
}

// ErrMemberLookup wraps a failed role or channel lookup.
var ErrMemberLookup = errors.New("member details unavailable")

// Platform is what the bot needs from the chat platform.
type Platform interface {
	// Reply answers msg in its channel.
	Reply(ctx context.Context, msg *Message, text string) error
	// GrantRole adds the named role to a member.
	GrantRole(ctx context.Context, guildID, userID, roleName string) error
}

// Limiter enforces per-user cooldowns on game commands.
// *cache.Cache satisfies it.
type Limiter interface {
	CheckCooldown(ctx context.Context, subject string, period time.Duration) (*cache.RateLimitResult, error)
}
