// Package game implements the chance games that can grant a reward role.
package game

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Game names, used for cooldown keys and metrics labels.
const (
	NameOracle = "oracle"
	NameSlot   = "slot"
)

// Reels is the number of reels on a slot machine.
const Reels = 3

// Validation errors.
var (
	ErrInvalidOdds     = errors.New("odds must be at least 1")
	ErrTooFewSymbols   = errors.New("slot needs at least two symbols")
	ErrDuplicateSymbol = errors.New("slot symbols must be unique")
)

// DefaultSymbols is used when a project configures none.
var DefaultSymbols = []string{"🍒", "🍋", "🔔", "💎", "7️⃣"}

// Source serialises access to a *rand.Rand, which is not safe for concurrent
// use. Games that share a generator must share its Source.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource wraps rng. A nil rng seeds one from the clock.
func NewSource(rng *rand.Rand) *Source {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Source{rng: rng}
}

func (s *Source) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Oracle answers a sacrifice with a win one time in Odds.
type Oracle struct {
	odds int
	src  *Source
}

// NewOracle creates an Oracle drawing from src. A nil src gets its own
// clock-seeded generator.
func NewOracle(odds int, src *Source) (*Oracle, error) {
	if odds < 1 {
		return nil, ErrInvalidOdds
	}
	if src == nil {
		src = NewSource(nil)
	}
	return &Oracle{odds: odds, src: src}, nil
}

// Odds returns the 1-in-N odds of a win.
func (o *Oracle) Odds() int {
	return o.odds
}

// Consult reports whether this sacrifice is accepted.
func (o *Oracle) Consult() bool {
	return o.src.intn(o.odds) == 0
}

// Spin is the result of one slot pull.
type Spin struct {
	Reels [Reels]string
	Won   bool
}

// String renders the reels separated by spaces.
func (s Spin) String() string {
	return strings.Join(s.Reels[:], " ")
}

// Slot is a three reel machine; three of a kind wins.
type Slot struct {
	symbols []string
	src     *Source
}

// NewSlot creates a Slot over symbols drawing from src. A nil src gets its
// own clock-seeded generator.
func NewSlot(symbols []string, src *Source) (*Slot, error) {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	if len(symbols) < 2 {
		return nil, ErrTooFewSymbols
	}
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			return nil, ErrDuplicateSymbol
		}
		seen[s] = true
	}
	if src == nil {
		src = NewSource(nil)
	}

	return &Slot{
		symbols: append([]string(nil), symbols...),
		src:     src,
	}, nil
}

// Spin pulls the lever once.
func (s *Slot) Spin() Spin {
	var spin Spin
	for i := range spin.Reels {
		spin.Reels[i] = s.symbols[s.src.intn(len(s.symbols))]
	}
	spin.Won = spin.Reels[0] == spin.Reels[1] && spin.Reels[1] == spin.Reels[2]
	return spin
}
