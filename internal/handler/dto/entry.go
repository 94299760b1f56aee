// Package dto holds the JSON shapes of the admin API.
package dto

import (
	"time"

	"github.com/listkeeper/listkeeper/internal/model"
	"github.com/listkeeper/listkeeper/internal/wallet"
)

// EntryResponse represents an allow list entry in API responses.
type EntryResponse struct {
	ID         string     `json:"id"`
	Project    string     `json:"project"`
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	ListName   string     `json:"list_name"`
	Wallet     string     `json:"wallet"`
	JoinDate   *time.Time `json:"join_date,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// EntryListResponse represents a paginated list of entries.
type EntryListResponse struct {
	Data       []EntryResponse `json:"data"`
	Pagination *Pagination     `json:"pagination"`
}

// Pagination holds cursor-based pagination info.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// CountResponse reports how many entries a project or list holds.
type CountResponse struct {
	Project  string `json:"project"`
	ListName string `json:"list_name,omitempty"`
	Count    int64  `json:"count"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToEntryResponse converts a ListEntry model to EntryResponse DTO.
// Wallets are shown in checksummed form.
func ToEntryResponse(entry *model.ListEntry) *EntryResponse {
	return &EntryResponse{
		ID:         entry.ID,
		Project:    entry.Project,
		UserID:     entry.UserID,
		Username:   entry.Username,
		ListName:   entry.ListName,
		Wallet:     wallet.Checksum(entry.Wallet),
		JoinDate:   entry.JoinDate,
		RecordedAt: entry.RecordedAt,
	}
}

// ToEntryListResponse converts a page of entries to EntryListResponse.
func ToEntryListResponse(entries []*model.ListEntry, nextCursor string, hasMore bool) *EntryListResponse {
	responses := make([]EntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = *ToEntryResponse(entry)
	}
	return &EntryListResponse{
		Data: responses,
		Pagination: &Pagination{
			NextCursor: nextCursor,
			HasMore:    hasMore,
		},
	}
}
