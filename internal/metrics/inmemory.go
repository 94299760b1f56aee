package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledCount is one counter series with its label value.
type LabeledCount struct {
	Label string
	Value uint64
}

// Snapshot captures current in-memory counters.
// Labeled series are sorted by label.
type Snapshot struct {
	Commands             []LabeledCount
	CommandsDenied       []LabeledCount
	Registrations        []LabeledCount
	StoreErrors          uint64
	StoreDurationCount   uint64
	StoreDurationTotalNs int64
	GameRolls            []LabeledCount
	GameWins             []LabeledCount
}

// InMemoryRecorder stores metrics in memory; it backs the /metrics endpoint.
type InMemoryRecorder struct {
	storeErrors          uint64
	storeDurationCount   uint64
	storeDurationTotalNs int64

	mu             sync.Mutex
	commands       map[string]uint64
	commandsDenied map[string]uint64
	registrations  map[string]uint64
	gameRolls      map[string]uint64
	gameWins       map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		commands:       make(map[string]uint64),
		commandsDenied: make(map[string]uint64),
		registrations:  make(map[string]uint64),
		gameRolls:      make(map[string]uint64),
		gameWins:       make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Commands:             sorted(m.commands),
		CommandsDenied:       sorted(m.commandsDenied),
		Registrations:        sorted(m.registrations),
		StoreErrors:          atomic.LoadUint64(&m.storeErrors),
		StoreDurationCount:   atomic.LoadUint64(&m.storeDurationCount),
		StoreDurationTotalNs: atomic.LoadInt64(&m.storeDurationTotalNs),
		GameRolls:            sorted(m.gameRolls),
		GameWins:             sorted(m.gameWins),
	}
}

// IncCommand increments the command counter.
func (m *InMemoryRecorder) IncCommand(command string) {
	m.inc(m.commands, command)
}

// IncCommandDenied increments the denied command counter.
func (m *InMemoryRecorder) IncCommandDenied(reason string) {
	m.inc(m.commandsDenied, reason)
}

// IncRegistration increments the registration outcome counter.
func (m *InMemoryRecorder) IncRegistration(outcome string) {
	m.inc(m.registrations, outcome)
}

// IncStoreError increments the store error counter.
func (m *InMemoryRecorder) IncStoreError() {
	atomic.AddUint64(&m.storeErrors, 1)
}

// ObserveStoreDuration records store call duration.
func (m *InMemoryRecorder) ObserveStoreDuration(duration time.Duration) {
	atomic.AddUint64(&m.storeDurationCount, 1)
	atomic.AddInt64(&m.storeDurationTotalNs, duration.Nanoseconds())
}

// IncGameRoll increments the roll counter, and the win counter on a win.
func (m *InMemoryRecorder) IncGameRoll(game string, won bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameRolls[game]++
	if won {
		m.gameWins[game]++
	}
}

func (m *InMemoryRecorder) inc(series map[string]uint64, label string) {
	m.mu.Lock()
	series[label]++
	m.mu.Unlock()
}

func sorted(series map[string]uint64) []LabeledCount {
	out := make([]LabeledCount, 0, len(series))
	for label, v := range series {
		out = append(out, LabeledCount{Label: label, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
