package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/listkeeper/listkeeper/internal/model"
)

// MemoryStore keeps entries in process memory.
// It backs STORE_DRIVER=memory and the service tests; entries are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[model.EntryKey]*model.ListEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[model.EntryKey]*model.ListEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// RegisterOrUpdate inserts or updates the entry for entry.Key().
// The whole check-then-write runs under one lock.
func (m *MemoryStore) RegisterOrUpdate(ctx context.Context, entry *model.ListEntry) (*model.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := entry.Key()
	existing, ok := m.entries[key]
	if !ok {
		created := *entry
		if created.ID == "" {
			created.ID = ulid.Make().String()
		}
		if created.RecordedAt.IsZero() {
			created.RecordedAt = m.now()
		}
		m.entries[key] = &created
		return &model.UpsertResult{Outcome: model.OutcomeCreated, Entry: clone(&created)}, nil
	}

	if existing.Wallet == entry.Wallet {
		return &model.UpsertResult{
			Outcome:        model.OutcomeUnchanged,
			Entry:          clone(existing),
			PreviousWallet: existing.Wallet,
		}, nil
	}

	previous := existing.Wallet
	existing.Wallet = entry.Wallet
	return &model.UpsertResult{
		Outcome:        model.OutcomeUpdated,
		Entry:          clone(existing),
		PreviousWallet: previous,
	}, nil
}

// FindEntry retrieves the entry for one user on one list.
func (m *MemoryStore) FindEntry(ctx context.Context, project, listName, userID string) (*model.ListEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[model.EntryKey{Project: project, ListName: listName, UserID: userID}]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return clone(entry), nil
}

// FindAnyEntry retrieves the most recently recorded entry for a user on any list.
func (m *MemoryStore) FindAnyEntry(ctx context.Context, project, userID string) (*model.ListEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var found *model.ListEntry
	for key, entry := range m.entries {
		if key.Project != project || key.UserID != userID {
			continue
		}
		if found == nil || newer(entry, found) {
			found = entry
		}
	}
	if found == nil {
		return nil, ErrEntryNotFound
	}
	return clone(found), nil
}

// CountEntries counts registrations in a project, optionally on one list.
func (m *MemoryStore) CountEntries(ctx context.Context, project, listName string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key := range m.entries {
		if key.Project == project && (listName == "" || key.ListName == listName) {
			count++
		}
	}
	return count, nil
}

// ListEntries retrieves a page of entries, newest first.
func (m *MemoryStore) ListEntries(ctx context.Context, filter EntryFilter, cursor string, limit int) ([]*model.ListEntry, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	lists := make(map[string]bool, len(filter.ListNames))
	for _, name := range filter.ListNames {
		lists[name] = true
	}

	m.mu.Lock()
	matched := make([]*model.ListEntry, 0, len(m.entries))
	for key, entry := range m.entries {
		if key.Project != filter.Project {
			continue
		}
		if len(lists) > 0 && !lists[key.ListName] {
			continue
		}
		matched = append(matched, clone(entry))
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return newer(matched[i], matched[j]) })

	page := make([]*model.ListEntry, 0, limit+1)
	for _, entry := range matched {
		if cursorData != nil && !before(entry, cursorData) {
			continue
		}
		page = append(page, entry)
		if len(page) > limit {
			break
		}
	}

	page, next := trimPage(page, limit)
	return page, next, nil
}

// newer orders entries by (RecordedAt, ID) descending.
func newer(a, b *model.ListEntry) bool {
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.After(b.RecordedAt)
	}
	return a.ID > b.ID
}

// before reports whether entry sorts strictly after the cursor position.
func before(entry *model.ListEntry, c *PaginationCursor) bool {
	if !entry.RecordedAt.Equal(c.RecordedAt) {
		return entry.RecordedAt.Before(c.RecordedAt)
	}
	return entry.ID < c.ID
}

func clone(e *model.ListEntry) *model.ListEntry {
	out := *e
	if e.JoinDate != nil {
		jd := *e.JoinDate
		out.JoinDate = &jd
	}
	return &out
}
