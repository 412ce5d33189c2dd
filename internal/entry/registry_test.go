package entry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// MockRepository is an in-memory Repository for registry tests.
type MockRepository struct {
	mu      sync.Mutex
	entries map[string]*Entry

	listErr   error
	createErr error
	getErr    error
	listCalls int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{entries: make(map[string]*Entry)}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if e, ok := m.entries[id]; ok {
		return e.DeepCopy(), nil
	}
	return nil, ErrEntryNotFound
}

func (m *MockRepository) GetByUniqueID(_ context.Context, uniqueID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, e := range m.entries {
		if e.UniqueID == uniqueID {
			return e.DeepCopy(), nil
		}
	}
	return nil, ErrEntryNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, *e)
	}
	return entries, nil
}

func (m *MockRepository) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.entries {
		if existing.UniqueID == e.UniqueID {
			return ErrEntryExists
		}
	}
	m.entries[e.ID] = e.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func TestRegistry_CreateAndExists(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())

	exists, err := reg.Exists(ctx, "192.168.5.60")
	if err != nil || exists {
		t.Fatalf("Exists() before create = %v, %v", exists, err)
	}

	e := New("192.168.5.60")
	if err := reg.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == "" {
		t.Error("Create() did not assign an ID")
	}

	exists, err = reg.Exists(ctx, "192.168.5.60")
	if err != nil || !exists {
		t.Errorf("Exists() after create = %v, %v", exists, err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}

	if err := reg.Create(ctx, New("192.168.5.60")); !errors.Is(err, ErrEntryExists) {
		t.Errorf("duplicate Create() error = %v, want ErrEntryExists", err)
	}
}

func TestRegistry_CreateValidation(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())

	tests := []struct {
		name   string
		mutate func(e *Entry)
	}{
		{"empty unique id", func(e *Entry) { e.UniqueID = "" }},
		{"empty host", func(e *Entry) { e.Data.Host = " " }},
		{"empty title", func(e *Entry) { e.Title = "" }},
		{"long title", func(e *Entry) { e.Title = strings.Repeat("Ä", MaxTitleLength+1) }},
		{"foreign domain", func(e *Entry) { e.Domain = "knx" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New("192.168.5.60")
			tt.mutate(e)
			if err := reg.Create(ctx, e); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Create() error = %v, want ErrInvalidEntry", err)
			}
		})
	}

	if err := ValidateEntry(nil); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("ValidateEntry(nil) error = %v", err)
	}
	// Exactly at the limit is fine.
	e := New("h")
	e.Title = strings.Repeat("Ä", MaxTitleLength)
	if err := ValidateEntry(e); err != nil {
		t.Errorf("ValidateEntry() at limit error = %v", err)
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	for _, host := range []string{"10.0.0.1", "10.0.0.2"} {
		e := New(host)
		e.ID = GenerateID()
		repo.entries[e.ID] = e
	}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}

	entries, err := reg.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ListEntries() len = %d, want 2", len(entries))
	}
	if repo.listCalls != 1 {
		t.Errorf("repository List calls = %d, want 1", repo.listCalls)
	}
}

func TestRegistry_RefreshCacheError(t *testing.T) {
	repo := NewMockRepository()
	repo.listErr = errors.New("disk gone")

	if err := NewRegistry(repo).RefreshCache(context.Background()); err == nil {
		t.Fatal("RefreshCache() should fail when the repository fails")
	}
}

func TestRegistry_ExistsRepositoryError(t *testing.T) {
	repo := NewMockRepository()
	repo.getErr = errors.New("database is locked")

	if _, err := NewRegistry(repo).Exists(context.Background(), "10.0.0.1"); err == nil {
		t.Fatal("Exists() should surface repository errors")
	}
}

func TestRegistry_GetEntryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())

	e := New("192.168.5.60")
	if err := reg.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := reg.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	got.Title = "mutated"

	again, err := reg.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if again.Title != Title("192.168.5.60") {
		t.Errorf("cache mutated through returned entry: %q", again.Title)
	}

	if _, err := reg.GetEntry(ctx, "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("GetEntry(missing) error = %v, want ErrEntryNotFound", err)
	}
}

func TestRegistry_DeleteEntry(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())

	e := New("192.168.5.60")
	if err := reg.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := reg.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}

	exists, err := reg.Exists(ctx, "192.168.5.60")
	if err != nil || exists {
		t.Errorf("Exists() after delete = %v, %v", exists, err)
	}
	if err := reg.DeleteEntry(ctx, e.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("second DeleteEntry() error = %v, want ErrEntryNotFound", err)
	}

	// The host can be paired again.
	if err := reg.Create(ctx, New("192.168.5.60")); err != nil {
		t.Errorf("Create() after delete error = %v", err)
	}
}

func TestRegistry_ExistsFollowsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	reg := NewRegistry(repo)
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatal(err)
	}

	e := New("10.0.0.1")
	if err := reg.Create(ctx, e); err != nil {
		t.Fatal(err)
	}

	// Removed by another process sharing the database.
	if err := repo.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	exists, err := reg.Exists(ctx, "10.0.0.1")
	if err != nil || exists {
		t.Fatalf("Exists() after external delete = %v, %v, want false, nil", exists, err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want stale entry dropped", reg.Count())
	}
	if err := reg.Create(ctx, New("10.0.0.1")); err != nil {
		t.Errorf("Create() after external delete error = %v", err)
	}

	// Added by another process.
	other := New("10.0.0.2")
	other.ID = GenerateID()
	if err := repo.Create(ctx, other); err != nil {
		t.Fatal(err)
	}
	exists, err = reg.Exists(ctx, "10.0.0.2")
	if err != nil || !exists {
		t.Fatalf("Exists() after external create = %v, %v, want true, nil", exists, err)
	}
	if _, err := reg.GetEntry(ctx, other.ID); err != nil {
		t.Errorf("GetEntry() error = %v", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}

	repo.getErr = errors.New("disk gone")
	if _, err := reg.Exists(ctx, "10.0.0.2"); err == nil {
		t.Error("Exists() should fail when the repository fails")
	}
}
