package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/listkeeper/listkeeper/internal/handler/dto"
	"github.com/listkeeper/listkeeper/internal/model"
	"github.com/listkeeper/listkeeper/internal/repository"
	"github.com/listkeeper/listkeeper/internal/service"
	"github.com/listkeeper/listkeeper/internal/testutil"
	"github.com/listkeeper/listkeeper/internal/wallet"
)

const (
	userA = "100000000000000001"
	userB = "100000000000000002"
	userC = "100000000000000003"
)

// unavailableStore fails every call like an unreachable database.
type unavailableStore struct{}

var errConnRefused = errors.New("connection refused")

func (unavailableStore) RegisterOrUpdate(context.Context, *model.ListEntry) (*model.UpsertResult, error) {
	return nil, errConnRefused
}
func (unavailableStore) FindEntry(context.Context, string, string, string) (*model.ListEntry, error) {
	return nil, errConnRefused
}
func (unavailableStore) FindAnyEntry(context.Context, string, string) (*model.ListEntry, error) {
	return nil, errConnRefused
}
func (unavailableStore) CountEntries(context.Context, string, string) (int64, error) {
	return 0, errConnRefused
}
func (unavailableStore) ListEntries(context.Context, repository.EntryFilter, string, int) ([]*model.ListEntry, string, error) {
	return nil, "", errConnRefused
}

func newEntriesRouter(t *testing.T, store service.Store) http.Handler {
	t.Helper()
	h := NewEntriesHandler(service.NewEntryService(store, service.Options{}), mustProjects(t), nil)

	r := chi.NewRouter()
	r.Get("/projects/{project}/entries", h.List)
	r.Get("/projects/{project}/entries/count", h.Count)
	r.Get("/projects/{project}/users/{userID}", h.GetUser)
	return r
}

func seededStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	seed := []*model.ListEntry{
		testutil.NewTestEntry(t, "blerx", "Friends", userA, testutil.Wallet(1)),
		testutil.NewTestEntry(t, "blerx", "Blerxers", userB, testutil.Wallet(2)),
		testutil.NewTestEntry(t, "blerx", "Friends", userC, testutil.Wallet(3)),
		testutil.NewTestEntry(t, "glim", "OG", userA, testutil.Wallet(4)),
	}
	for _, e := range seed {
		if _, err := store.RegisterOrUpdate(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestEntriesHandler_ListPaginates(t *testing.T) {
	router := newEntriesRouter(t, seededStore(t))

	rec := serve(t, router, "/projects/blerx/entries?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[dto.EntryListResponse](t, rec)
	if len(first.Data) != 2 || !first.Pagination.HasMore || first.Pagination.NextCursor == "" {
		t.Fatalf("unexpected first page: %+v", first)
	}

	rec = serve(t, router, "/projects/blerx/entries?limit=2&cursor="+first.Pagination.NextCursor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	second := decodeBody[dto.EntryListResponse](t, rec)
	if len(second.Data) != 1 || second.Pagination.HasMore {
		t.Fatalf("unexpected second page: %+v", second)
	}

	seen := map[string]bool{}
	for _, e := range append(first.Data, second.Data...) {
		if e.Project != "blerx" {
			t.Errorf("entry from project %q leaked into blerx listing", e.Project)
		}
		seen[e.UserID+"/"+e.ListName] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 distinct entries across pages, got %d", len(seen))
	}
}

func TestEntriesHandler_ListFiltersByList(t *testing.T) {
	router := newEntriesRouter(t, seededStore(t))

	rec := serve(t, router, "/projects/blerx/entries?list=Blerxers")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	page := decodeBody[dto.EntryListResponse](t, rec)
	if len(page.Data) != 1 || page.Data[0].UserID != userB {
		t.Fatalf("unexpected page: %+v", page.Data)
	}
	if page.Data[0].Wallet != wallet.Checksum(testutil.Wallet(2)) {
		t.Errorf("wallet = %s, want checksummed form", page.Data[0].Wallet)
	}

	rec = serve(t, router, "/projects/blerx/entries?list=Blerxers&list=Friends")
	if page := decodeBody[dto.EntryListResponse](t, rec); len(page.Data) != 3 {
		t.Errorf("expected 3 entries for both lists, got %d", len(page.Data))
	}
}

func TestEntriesHandler_ListInvalidCursor(t *testing.T) {
	router := newEntriesRouter(t, seededStore(t))

	rec := serve(t, router, "/projects/blerx/entries?cursor=not-a-cursor")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeBody[dto.ErrorResponse](t, rec); resp.Code != "INVALID_CURSOR" {
		t.Errorf("unexpected error code: %s", resp.Code)
	}
}

func TestEntriesHandler_UnknownProject(t *testing.T) {
	router := newEntriesRouter(t, seededStore(t))

	for _, target := range []string{
		"/projects/nope/entries",
		"/projects/nope/entries/count",
		"/projects/nope/users/" + userA,
	} {
		rec := serve(t, router, target)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", target, rec.Code)
			continue
		}
		if resp := decodeBody[dto.ErrorResponse](t, rec); resp.Code != "PROJECT_NOT_FOUND" {
			t.Errorf("%s: unexpected error code: %s", target, resp.Code)
		}
	}
}

func TestEntriesHandler_Count(t *testing.T) {
	router := newEntriesRouter(t, seededStore(t))

	tests := []struct {
		target string
		want   dto.CountResponse
	}{
		{"/projects/blerx/entries/count", dto.CountResponse{Project: "blerx", Count: 3}},
		{"/projects/blerx/entries/count?list=Friends", dto.CountResponse{Project: "blerx", ListName: "Friends", Count: 2}},
		{"/projects/blerx/entries/count?list=Nobody", dto.CountResponse{Project: "blerx", ListName: "Nobody", Count: 0}},
		{"/projects/glim/entries/count", dto.CountResponse{Project: "glim", Count: 1}},
	}

	for _, tt := range tests {
		rec := serve(t, router, tt.target)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", tt.target, rec.Code)
			continue
		}
		if got := decodeBody[dto.CountResponse](t, rec); got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.target, got, tt.want)
		}
	}
}

func TestEntriesHandler_GetUser(t *testing.T) {
	router := newEntriesRouter(t, seededStore(t))

	rec := serve(t, router, "/projects/blerx/users/"+userB)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	entry := decodeBody[dto.EntryResponse](t, rec)
	if entry.ListName != "Blerxers" || entry.Wallet != wallet.Checksum(testutil.Wallet(2)) {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.ID == "" || entry.RecordedAt.IsZero() {
		t.Errorf("entry should carry id and recorded_at: %+v", entry)
	}

	// Mentions are accepted like in chat.
	rec = serve(t, router, "/projects/blerx/users/%3C@"+userA+"%3E?list=Friends")
	if rec.Code != http.StatusOK {
		t.Fatalf("mention lookup: expected status 200, got %d", rec.Code)
	}

	rec = serve(t, router, "/projects/blerx/users/"+userA+"?list=Blerxers")
	if rec.Code != http.StatusNotFound {
		t.Errorf("wrong list: expected status 404, got %d", rec.Code)
	}
	if resp := decodeBody[dto.ErrorResponse](t, rec); resp.Code != "ENTRY_NOT_FOUND" {
		t.Errorf("unexpected error code: %s", resp.Code)
	}
}

func TestEntriesHandler_GetUserInvalidID(t *testing.T) {
	router := newEntriesRouter(t, seededStore(t))

	rec := serve(t, router, "/projects/blerx/users/bob")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeBody[dto.ErrorResponse](t, rec); resp.Code != "INVALID_USER_ID" {
		t.Errorf("unexpected error code: %s", resp.Code)
	}
}

func TestEntriesHandler_StoreUnavailable(t *testing.T) {
	router := newEntriesRouter(t, unavailableStore{})

	for _, target := range []string{
		"/projects/blerx/entries",
		"/projects/blerx/entries/count",
		"/projects/blerx/users/" + userA,
	} {
		rec := serve(t, router, target)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", target, rec.Code)
			continue
		}
		if resp := decodeBody[dto.ErrorResponse](t, rec); resp.Code != "STORE_UNAVAILABLE" {
			t.Errorf("%s: unexpected error code: %s", target, resp.Code)
		}
	}
}
