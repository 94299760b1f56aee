// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/listkeeper/listkeeper/internal/cache"
	"github.com/listkeeper/listkeeper/internal/eligibility"
	"github.com/listkeeper/listkeeper/internal/metrics"
	"github.com/listkeeper/listkeeper/internal/model"
	"github.com/listkeeper/listkeeper/internal/repository"
	"github.com/listkeeper/listkeeper/internal/wallet"
)

// Service errors.
var (
	ErrStoreUnavailable = errors.New("entry store unavailable")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidCursor    = errors.New("invalid pagination cursor")
)

const (
	defaultStoreTimeout = 5 * time.Second
	defaultCountTTL     = 30 * time.Second
	defaultPageSize     = 20
	maxPageSize         = 100
)

// Snowflakes are 17-20 digits today; mentions wrap them as <@id> or <@!id>.
var userIDPattern = regexp.MustCompile(`^(?:<@!?(\d{15,21})>|(\d{15,21}))$`)

// Store is the persistence contract shared by the Postgres and in-memory stores.
type Store interface {
	RegisterOrUpdate(ctx context.Context, entry *model.ListEntry) (*model.UpsertResult, error)
	FindEntry(ctx context.Context, project, listName, userID string) (*model.ListEntry, error)
	FindAnyEntry(ctx context.Context, project, userID string) (*model.ListEntry, error)
	CountEntries(ctx context.Context, project, listName string) (int64, error)
	ListEntries(ctx context.Context, filter repository.EntryFilter, cursor string, limit int) ([]*model.ListEntry, string, error)
}

// CountCache caches entry counts. *cache.Cache satisfies it.
// GetCount also returns the project's count version; SetCount refuses with
// cache.ErrStaleCount once InvalidateCounts has moved the version on.
type CountCache interface {
	GetCount(ctx context.Context, project, listName string) (count, version int64, err error)
	SetCount(ctx context.Context, project, listName string, count, version int64, ttl time.Duration) error
	InvalidateCounts(ctx context.Context, project, listName string) error
}

// Options configures an EntryService. Zero values select defaults.
type Options struct {
	Cache        CountCache
	CountTTL     time.Duration
	StoreTimeout time.Duration
	Metrics      metrics.Recorder
	Logger       *slog.Logger
}

// EntryService owns store access for every project.
// Registrars for individual projects are derived from it.
type EntryService struct {
	store    Store
	cache    CountCache
	countTTL time.Duration
	timeout  time.Duration
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewEntryService creates a new EntryService.
func NewEntryService(store Store, opts Options) *EntryService {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CountTTL <= 0 {
		opts.CountTTL = defaultCountTTL
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &EntryService{
		store:    store,
		cache:    opts.Cache,
		countTTL: opts.CountTTL,
		timeout:  opts.StoreTimeout,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Registrar returns the registration flow for one project.
func (s *EntryService) Registrar(project string, resolver *eligibility.Resolver) *Registrar {
	return &Registrar{svc: s, project: project, resolver: resolver}
}

// Count returns the number of entries in project, optionally limited to one list.
// An empty listName counts every list.
func (s *EntryService) Count(ctx context.Context, project, listName string) (int64, error) {
	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		count, v, err := s.cache.GetCount(ctx, project, listName)
		switch {
		case err == nil:
			return count, nil
		case errors.Is(err, cache.ErrCacheMiss):
			version, cacheable = v, true
		default:
			s.logger.Warn("count cache read failed", "project", project, "list", listName, "error", err)
		}
	}

	var count int64
	err := s.withStore(ctx, "count", func(ctx context.Context) error {
		var err error
		count, err = s.store.CountEntries(ctx, project, listName)
		return err
	})
	if err != nil {
		return 0, err
	}

	if cacheable {
		err := s.cache.SetCount(ctx, project, listName, count, version, s.countTTL)
		switch {
		case errors.Is(err, cache.ErrStaleCount):
			s.logger.Debug("count changed while reading, not cached", "project", project, "list", listName)
		case err != nil:
			s.logger.Warn("count cache write failed", "project", project, "list", listName, "error", err)
		}
	}

	return count, nil
}

// Lookup finds a user's entry. An empty listName matches the most recent
// entry on any list.
func (s *EntryService) Lookup(ctx context.Context, project, userID, listName string) (*model.ListEntry, error) {
	var entry *model.ListEntry
	err := s.withStore(ctx, "lookup", func(ctx context.Context) error {
		var err error
		if listName == "" {
			entry, err = s.store.FindAnyEntry(ctx, project, userID)
		} else {
			entry, err = s.store.FindEntry(ctx, project, listName, userID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntriesInput defines input for listing entries.
type ListEntriesInput struct {
	Project   string
	ListNames []string
	Cursor    string
	Limit     int
}

// ListEntriesOutput defines output for listing entries.
type ListEntriesOutput struct {
	Entries    []*model.ListEntry
	NextCursor string
	HasMore    bool
}

// ListEntries retrieves a page of entries, newest first.
func (s *EntryService) ListEntries(ctx context.Context, input ListEntriesInput) (*ListEntriesOutput, error) {
	if input.Limit <= 0 || input.Limit > maxPageSize {
		input.Limit = defaultPageSize
	}

	filter := repository.EntryFilter{Project: input.Project, ListNames: input.ListNames}

	var (
		entries []*model.ListEntry
		next    string
	)
	err := s.withStore(ctx, "list", func(ctx context.Context) error {
		var err error
		entries, next, err = s.store.ListEntries(ctx, filter, input.Cursor, input.Limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	if entries == nil {
		entries = []*model.ListEntry{}
	}

	return &ListEntriesOutput{
		Entries:    entries,
		NextCursor: next,
		HasMore:    next != "",
	}, nil
}

// withStore runs fn under the store timeout, records latency and maps
// repository errors onto service errors. Anything unexpected is reported as
// ErrStoreUnavailable.
func (s *EntryService) withStore(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveStoreDuration(time.Since(start))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrEntryNotFound):
		return ErrEntryNotFound
	case errors.Is(err, repository.ErrInvalidCursor):
		return ErrInvalidCursor
	default:
		s.metrics.IncStoreError()
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
	}
}

func (s *EntryService) invalidateCounts(ctx context.Context, project, listName string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCounts(ctx, project, listName); err != nil {
		s.logger.Warn("count cache invalidation failed", "project", project, "list", listName, "error", err)
	}
}

// Registrar runs the allow list flow for one project:
// wallet validation, role resolution, then the keyed upsert.
type Registrar struct {
	svc      *EntryService
	project  string
	resolver *eligibility.Resolver
}

// Registration is one member's request to record a wallet.
type Registration struct {
	UserID    string
	Username  string
	JoinedAt  *time.Time
	UserRoles []string
	WalletArg string
}

// Result reports what a registration did.
// ListName is set whenever the member is eligible; Wallet whenever the
// argument held an address.
type Result struct {
	Outcome        model.Outcome
	ListName       string
	Wallet         string
	PreviousWallet string
	Entry          *model.ListEntry
}

// Project returns the project this registrar writes to.
func (r *Registrar) Project() string {
	return r.project
}

// Resolver returns the eligibility resolver for this project.
func (r *Registrar) Resolver() *eligibility.Resolver {
	return r.resolver
}

// Register validates the wallet argument, resolves the member's list and
// records the wallet. Invalid wallets and ineligible members are reported
// through Result.Outcome; the error is reserved for store faults.
func (r *Registrar) Register(ctx context.Context, reg Registration) (*Result, error) {
	addr, ok := wallet.Validate(reg.WalletArg)
	if !ok {
		r.svc.metrics.IncRegistration(string(model.OutcomeInvalidWallet))
		return &Result{Outcome: model.OutcomeInvalidWallet}, nil
	}

	listName, ok := r.resolver.Resolve(reg.UserRoles)
	if !ok {
		r.svc.metrics.IncRegistration(string(model.OutcomeIneligible))
		return &Result{Outcome: model.OutcomeIneligible, Wallet: addr}, nil
	}

	entry := &model.ListEntry{
		Project:  r.project,
		UserID:   reg.UserID,
		Username: reg.Username,
		ListName: listName,
		Wallet:   addr,
		JoinDate: reg.JoinedAt,
	}

	var upsert *model.UpsertResult
	err := r.svc.withStore(ctx, "register", func(ctx context.Context) error {
		var err error
		upsert, err = r.svc.store.RegisterOrUpdate(ctx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	if upsert.Outcome == model.OutcomeCreated {
		r.svc.invalidateCounts(ctx, r.project, listName)
	}
	r.svc.metrics.IncRegistration(string(upsert.Outcome))

	return &Result{
		Outcome:        upsert.Outcome,
		ListName:       listName,
		Wallet:         addr,
		PreviousWallet: upsert.PreviousWallet,
		Entry:          upsert.Entry,
	}, nil
}

// CheckResult is a member's own registration status.
type CheckResult struct {
	Eligible bool
	ListName string
	Entry    *model.ListEntry // nil when not registered
}

// Check reports the member's entry on the list their roles resolve to.
func (r *Registrar) Check(ctx context.Context, userID string, userRoles []string) (*CheckResult, error) {
	listName, ok := r.resolver.Resolve(userRoles)
	if !ok {
		return &CheckResult{}, nil
	}

	entry, err := r.svc.Lookup(ctx, r.project, userID, listName)
	if errors.Is(err, ErrEntryNotFound) {
		return &CheckResult{Eligible: true, ListName: listName}, nil
	}
	if err != nil {
		return nil, err
	}

	return &CheckResult{Eligible: true, ListName: listName, Entry: entry}, nil
}

// Lookup finds another member's entry, for admins.
func (r *Registrar) Lookup(ctx context.Context, userID, listName string) (*model.ListEntry, error) {
	return r.svc.Lookup(ctx, r.project, userID, listName)
}

// Count returns the entry count for this project.
func (r *Registrar) Count(ctx context.Context, listName string) (int64, error) {
	return r.svc.Count(ctx, r.project, listName)
}

// ParseUserID accepts a bare snowflake or a mention and returns the snowflake.
func ParseUserID(raw string) (string, error) {
	m := userIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, raw)
	}
	if m[1] != "" {
		return m[1], nil
	}
	return m[2], nil
}
