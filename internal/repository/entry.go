package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"

	"github.com/listkeeper/listkeeper/internal/model"
)

// Common errors for entry store operations.
var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrEntryConflict = errors.New("concurrent write for entry key")
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// EntryFilter narrows ListEntries.
type EntryFilter struct {
	Project   string
	ListNames []string // empty means every list
}

// PaginationCursor represents decoded cursor for pagination.
type PaginationCursor struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
}

const entryColumns = `id, project, user_id, username, list_name, wallet, join_date, recorded_at`

// RegisterOrUpdate inserts entry, or replaces the wallet of the existing entry
// with the same key. Writes for one key are serialized by a transaction-scoped
// advisory lock, so the reported outcome reflects the true previous wallet.
func (r *Repository) RegisterOrUpdate(ctx context.Context, entry *model.ListEntry) (*model.UpsertResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	key := entry.Key()
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return nil, fmt.Errorf("failed to lock entry key: %w", err)
	}

	query := `
		SELECT ` + entryColumns + `
		FROM list_entries
		WHERE project = $1 AND list_name = $2 AND user_id = $3
		FOR UPDATE
	`
	existing, err := scanEntry(tx.QueryRow(ctx, query, key.Project, key.ListName, key.UserID))

	var result *model.UpsertResult
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		created := *entry
		if created.ID == "" {
			created.ID = ulid.Make().String()
		}
		if created.RecordedAt.IsZero() {
			created.RecordedAt = time.Now().UTC()
		}
		if err := insertEntry(ctx, tx, &created); err != nil {
			return nil, err
		}
		result = &model.UpsertResult{Outcome: model.OutcomeCreated, Entry: &created}

	case err != nil:
		return nil, fmt.Errorf("failed to look up entry: %w", err)

	case existing.Wallet == entry.Wallet:
		result = &model.UpsertResult{
			Outcome:        model.OutcomeUnchanged,
			Entry:          existing,
			PreviousWallet: existing.Wallet,
		}

	default:
		previous := existing.Wallet
		if _, err := tx.Exec(ctx,
			`UPDATE list_entries SET wallet = $2 WHERE id = $1`,
			existing.ID, entry.Wallet,
		); err != nil {
			return nil, fmt.Errorf("failed to update wallet: %w", err)
		}
		existing.Wallet = entry.Wallet
		result = &model.UpsertResult{
			Outcome:        model.OutcomeUpdated,
			Entry:          existing,
			PreviousWallet: previous,
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	return result, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, entry *model.ListEntry) error {
	query := `
		INSERT INTO list_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query,
		entry.ID,
		entry.Project,
		entry.UserID,
		entry.Username,
		entry.ListName,
		entry.Wallet,
		entry.JoinDate,
		entry.RecordedAt,
	)
	if err != nil {
		// The advisory lock should make this unreachable; the unique index
		// still refuses a second row if some writer bypasses it.
		if isUniqueViolation(err) {
			return ErrEntryConflict
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

// FindEntry retrieves the entry for one user on one list.
func (r *Repository) FindEntry(ctx context.Context, project, listName, userID string) (*model.ListEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM list_entries
		WHERE project = $1 AND list_name = $2 AND user_id = $3
	`

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, project, listName, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}

	return entry, nil
}

// FindAnyEntry retrieves the most recently recorded entry for a user on any list.
func (r *Repository) FindAnyEntry(ctx context.Context, project, userID string) (*model.ListEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM list_entries
		WHERE project = $1 AND user_id = $2
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, project, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to find entry by user: %w", err)
	}

	return entry, nil
}

// CountEntries counts registrations in a project, optionally on one list.
func (r *Repository) CountEntries(ctx context.Context, project, listName string) (int64, error) {
	query := `SELECT COUNT(*) FROM list_entries WHERE project = $1`
	args := []any{project}
	if listName != "" {
		query += ` AND list_name = $2`
		args = append(args, listName)
	}

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}

	return count, nil
}

// ListEntries retrieves a page of entries, newest first.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter, cursor string, limit int) ([]*model.ListEntry, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", ErrInvalidCursor
		}
	}

	query := `
		SELECT ` + entryColumns + `
		FROM list_entries
		WHERE project = $1
	`
	args := []any{filter.Project}
	argIndex := 2

	if len(filter.ListNames) > 0 {
		query += fmt.Sprintf(" AND list_name = ANY($%d)", argIndex)
		args = append(args, pq.Array(filter.ListNames))
		argIndex++
	}

	if cursorData != nil {
		query += fmt.Sprintf(" AND (recorded_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.RecordedAt, cursorData.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY recorded_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.ListEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating entries: %w", err)
	}

	entries, next := trimPage(entries, limit)
	return entries, next, nil
}

// scanEntry scans a single row into a ListEntry.
func scanEntry(row pgx.Row) (*model.ListEntry, error) {
	var entry model.ListEntry
	err := row.Scan(
		&entry.ID,
		&entry.Project,
		&entry.UserID,
		&entry.Username,
		&entry.ListName,
		&entry.Wallet,
		&entry.JoinDate,
		&entry.RecordedAt,
	)
	return &entry, err
}

// trimPage cuts the look-ahead row and builds the next cursor from the last kept row.
func trimPage(entries []*model.ListEntry, limit int) ([]*model.ListEntry, string) {
	if len(entries) <= limit {
		return entries, ""
	}
	entries = entries[:limit]
	last := entries[len(entries)-1]
	return entries, encodeCursor(&PaginationCursor{ID: last.ID, RecordedAt: last.RecordedAt})
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// encodeCursor encodes pagination cursor to base64.
func encodeCursor(cursor *PaginationCursor) string {
	data, _ := json.Marshal(cursor)
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor decodes base64 pagination cursor.
func decodeCursor(s string) (*PaginationCursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	var cursor PaginationCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, err
	}
	if cursor.ID == "" {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}
