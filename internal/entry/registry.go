package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches entries over a Repository.
//
// The cache is populated by RefreshCache on startup and kept in sync by
// Create, DeleteEntry and Exists. Reads return deep copies. All methods are
// safe for concurrent use.
type Registry struct {
	repo     Repository
	cache    map[string]*Entry // by ID
	byUnique map[string]string // unique ID -> ID
	loaded   bool
	cacheMu  sync.RWMutex
	logger   Logger
}

// NewRegistry creates an entry registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		cache:    make(map[string]*Entry),
		byUnique: make(map[string]string),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// RefreshCache reloads every entry from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Entry, len(entries))
	r.byUnique = make(map[string]string, len(entries))
	for i := range entries {
		r.put(&entries[i])
	}
	r.loaded = true

	r.logger.Info("entry cache refreshed", "count", len(entries))
	return nil
}

// put stores a copy; caller holds cacheMu.
func (r *Registry) put(e *Entry) {
	r.cache[e.ID] = e.DeepCopy()
	r.byUnique[e.UniqueID] = e.ID
}

// Exists reports whether an entry with the unique id is registered.
//
// The repository is authoritative since another process may add or remove
// entries; the cache is brought in line with the answer.
func (r *Registry) Exists(ctx context.Context, uniqueID string) (bool, error) {
	e, err := r.repo.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		if !errors.Is(err, ErrEntryNotFound) {
			return false, err
		}
		r.cacheMu.Lock()
		if id, ok := r.byUnique[uniqueID]; ok {
			delete(r.cache, id)
			delete(r.byUnique, uniqueID)
			r.logger.Debug("dropped stale cached entry", "id", id, "unique_id", uniqueID)
		}
		r.cacheMu.Unlock()
		return false, nil
	}

	r.cacheMu.Lock()
	r.put(e)
	r.cacheMu.Unlock()
	return true, nil
}

// Create validates and persists a new entry, assigning an ID if empty.
// Returns ErrEntryExists if the unique id is already registered.
func (r *Registry) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = GenerateID()
	}
	if err := ValidateEntry(e); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, e); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.put(e)
	r.cacheMu.Unlock()

	r.logger.Info("entry created", "id", e.ID, "unique_id", e.UniqueID, "title", e.Title)
	return nil
}

// GetEntry retrieves an entry by ID.
func (r *Registry) GetEntry(ctx context.Context, id string) (*Entry, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	e, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.put(e)
	r.cacheMu.Unlock()

	return e, nil
}

// ListEntries returns all entries, oldest first.
func (r *Registry) ListEntries(ctx context.Context) ([]Entry, error) {
	r.cacheMu.RLock()
	if !r.loaded {
		r.cacheMu.RUnlock()
		return r.repo.List(ctx)
	}

	entries := make([]Entry, 0, len(r.cache))
	for _, e := range r.cache {
		entries = append(entries, *e.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// DeleteEntry removes an entry by ID.
func (r *Registry) DeleteEntry(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if e, ok := r.cache[id]; ok {
		delete(r.byUnique, e.UniqueID)
		delete(r.cache, id)
	}
	r.cacheMu.Unlock()

	r.logger.Info("entry deleted", "id", id)
	return nil
}

// Count returns the number of cached entries.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
