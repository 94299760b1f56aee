//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/listkeeper/listkeeper/internal/model"
	"github.com/listkeeper/listkeeper/internal/testutil"
)

// ============================================================================
// Entry Repository Integration Tests
// ============================================================================

func TestIntegrationEntryRepository_RegisterLifecycle(t *testing.T) {
	ctx, repo := newEntryTestEnv(t)

	w1, w2 := testutil.Wallet(1), testutil.Wallet(2)

	first, err := repo.RegisterOrUpdate(ctx, testutil.NewTestEntry(t, "proj", "Friends", "100", w1))
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	if first.Outcome != model.OutcomeCreated {
		t.Errorf("first outcome = %s, want created", first.Outcome)
	}

	second, err := repo.RegisterOrUpdate(ctx, testutil.NewTestEntry(t, "proj", "Friends", "100", w1))
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if second.Outcome != model.OutcomeUnchanged {
		t.Errorf("second outcome = %s, want unchanged", second.Outcome)
	}

	third, err := repo.RegisterOrUpdate(ctx, testutil.NewTestEntry(t, "proj", "Friends", "100", w2))
	if err != nil {
		t.Fatalf("third register: %v", err)
	}
	if third.Outcome != model.OutcomeUpdated || third.PreviousWallet != w1 || third.Entry.Wallet != w2 {
		t.Errorf("third = %+v", third)
	}

	count, err := repo.CountEntries(ctx, "proj", "Friends")
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if count != 1 {
		t.Errorf("CountEntries = %d, want 1", count)
	}

	stored, err := repo.FindEntry(ctx, "proj", "Friends", "100")
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}
	if stored.Wallet != w2 {
		t.Errorf("stored wallet = %s, want %s", stored.Wallet, w2)
	}
	if stored.JoinDate == nil {
		t.Error("join date should round-trip")
	}
}

func TestIntegrationEntryRepository_ConcurrentSameKey(t *testing.T) {
	ctx, repo := newEntryTestEnv(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	outcomes := make(chan model.Outcome, n)

	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := repo.RegisterOrUpdate(ctx, testutil.NewTestEntry(t, "proj", "Friends", "200", testutil.Wallet(i)))
			if err != nil {
				errs <- err
				return
			}
			outcomes <- res.Outcome
		}(i)
	}
	wg.Wait()
	close(errs)
	close(outcomes)

	for err := range errs {
		t.Errorf("RegisterOrUpdate: %v", err)
	}

	created := 0
	for o := range outcomes {
		if o == model.OutcomeCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("created outcomes = %d, want 1", created)
	}

	count, err := repo.CountEntries(ctx, "proj", "Friends")
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if count != 1 {
		t.Errorf("CountEntries = %d, want 1", count)
	}
}

func TestIntegrationEntryRepository_FindAnyIgnoresList(t *testing.T) {
	ctx, repo := newEntryTestEnv(t)

	if _, err := repo.RegisterOrUpdate(ctx, testutil.NewTestEntry(t, "proj", "Blerxers", "300", testutil.Wallet(3))); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := repo.FindEntry(ctx, "proj", "Friends", "300"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("FindEntry mismatched list: err = %v, want ErrEntryNotFound", err)
	}

	entry, err := repo.FindAnyEntry(ctx, "proj", "300")
	if err != nil {
		t.Fatalf("FindAnyEntry: %v", err)
	}
	if entry.ListName != "Blerxers" {
		t.Errorf("FindAnyEntry list = %s, want Blerxers", entry.ListName)
	}
}

func TestIntegrationEntryRepository_ListEntries(t *testing.T) {
	ctx, repo := newEntryTestEnv(t)

	for i, list := range []string{"Friends", "Blerxers", "Friends"} {
		uid := testutil.UniqueID("u")
		if _, err := repo.RegisterOrUpdate(ctx, testutil.NewTestEntry(t, "proj", list, uid, testutil.Wallet(i+10))); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	page, next, err := repo.ListEntries(ctx, EntryFilter{Project: "proj", ListNames: []string{"Friends"}}, "", 1)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(page) != 1 || next == "" {
		t.Fatalf("page len = %d next = %q", len(page), next)
	}

	rest, next, err := repo.ListEntries(ctx, EntryFilter{Project: "proj", ListNames: []string{"Friends"}}, next, 10)
	if err != nil {
		t.Fatalf("ListEntries page 2: %v", err)
	}
	if len(rest) != 1 || next != "" {
		t.Errorf("page 2 len = %d next = %q", len(rest), next)
	}
}

func newEntryTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetEntriesSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset entries schema: %v", err)
	}

	return ctx, repo
}
