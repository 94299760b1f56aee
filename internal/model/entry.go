// Package model defines domain entities for the application.
package model

import "time"

// Outcome classifies the result of a registration attempt.
type Outcome string

const (
	// OutcomeInvalidWallet means the argument held no wallet address.
	OutcomeInvalidWallet Outcome = "invalid_wallet"
	// OutcomeIneligible means the user holds no recognized role.
	OutcomeIneligible Outcome = "ineligible"
	// OutcomeCreated means a new entry was written.
	OutcomeCreated Outcome = "created"
	// OutcomeUnchanged means an entry with the same wallet already existed.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeUpdated means an existing entry had its wallet replaced.
	OutcomeUpdated Outcome = "updated"
)

// IsWrite reports whether the outcome came out of the store write path.
func (o Outcome) IsWrite() bool {
	return o == OutcomeCreated || o == OutcomeUnchanged || o == OutcomeUpdated
}

// ListEntry is a wallet registered by a user against one allow list.
// At most one entry exists per (Project, ListName, UserID).
type ListEntry struct {
	ID         string     `json:"id"`
	Project    string     `json:"project"`
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	ListName   string     `json:"list_name"`
	Wallet     string     `json:"wallet"`
	JoinDate   *time.Time `json:"join_date,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Key returns the uniqueness key of the entry.
func (e *ListEntry) Key() EntryKey {
	return EntryKey{Project: e.Project, ListName: e.ListName, UserID: e.UserID}
}

// EntryKey identifies the single entry a user may hold on a list.
type EntryKey struct {
	Project  string
	ListName string
	UserID   string
}

// String renders the key for lock names and log fields.
func (k EntryKey) String() string {
	return k.Project + "/" + k.ListName + "/" + k.UserID
}

// UpsertResult is what a store reports back from RegisterOrUpdate.
type UpsertResult struct {
	Outcome        Outcome
	Entry          *ListEntry
	PreviousWallet string
}
