package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hetarolabs/samantha/ai"
)

// Manager is the tiered session store. The in-process tier is authoritative
// for up to MaxCachedUsers users; reads fall through to the fast cache and
// then the durable store, and every update is propagated to both lower
// tiers asynchronously and best-effort.
type Manager struct {
	cfg     Config
	cache   Backend // fast shared cache, optional
	durable Backend // durable store, optional

	mu      sync.Mutex
	entries map[string]*Record
	locks   map[string]*sync.Mutex

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewManager creates a session manager over the given tiers. Either backend
// may be nil, in which case that tier is skipped.
func NewManager(cfg Config, cache, durable Backend) *Manager {
	return &Manager{
		cfg:     cfg.withDefaults(),
		cache:   cache,
		durable: durable,
		entries: make(map[string]*Record),
		locks:   make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing read-modify-write cycles for one
// user.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// Get returns the user's session record, repairing history consistency on
// the way out. A miss in the in-process tier falls through to the fast
// cache, then the durable store; concurrent fallback reads for the same
// user are collapsed into one. A fallback hit is NOT inserted in-process:
// the caller persists it through the next update. A miss everywhere yields
// a fresh empty record.
func (m *Manager) Get(ctx context.Context, userID string) *Record {
	m.mu.Lock()
	if entry, ok := m.entries[userID]; ok {
		entry.History = ai.RepairHistory(entry.History)
		record := entry.Clone()
		m.mu.Unlock()
		return record
	}
	m.mu.Unlock()

	value, _, _ := m.group.Do(userID, func() (any, error) {
		return m.loadFallback(ctx, userID), nil
	})
	return value.(*Record).Clone()
}

func (m *Manager) loadFallback(ctx context.Context, userID string) *Record {
	for _, backend := range []Backend{m.cache, m.durable} {
		if backend == nil {
			continue
		}
		record, err := backend.Get(ctx, userID)
		if err != nil {
			slog.Error("session tier read failed", "user", userID, "error", err)
			continue
		}
		if record == nil {
			continue
		}
		record.History = ai.RepairHistory(record.History)
		record.Cached = true
		record.UpdatedAt = time.Now()
		return record
	}

	return &Record{UpdatedAt: time.Now()}
}

// AddMessage appends one conversation to the user's history, trims it to
// the most recent MaxHistoryPerUser entries, and persists the record.
func (m *Manager) AddMessage(ctx context.Context, userID string, conversation ai.Conversation) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	record := m.Get(ctx, userID)
	record.History = append(record.History, conversation)
	if overflow := len(record.History) - m.cfg.MaxHistoryPerUser; overflow > 0 {
		record.History = record.History[overflow:]
	}
	m.update(userID, record)
}

// AddDocument assigns the next monotonic document id, trims the document
// list to the most recent MaxDocumentsPerUser entries, persists the record,
// and returns the new id.
func (m *Manager) AddDocument(ctx context.Context, userID string, document Document) string {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	record := m.Get(ctx, userID)
	document.ID = nextDocumentID(record.Documents)
	record.Documents = append(record.Documents, document)
	if overflow := len(record.Documents) - m.cfg.MaxDocumentsPerUser; overflow > 0 {
		record.Documents = record.Documents[overflow:]
	}
	m.update(userID, record)

	return document.ID
}

// nextDocumentID is max existing id + 1, or "0" for an empty list. Trimming
// never reuses ids because the maximum survives in the retained suffix.
func nextDocumentID(documents []Document) string {
	if len(documents) == 0 {
		return "0"
	}
	max := -1
	for _, document := range documents {
		id, err := strconv.Atoi(document.ID)
		if err != nil {
			continue
		}
		if id > max {
			max = id
		}
	}
	return strconv.Itoa(max + 1)
}

// GetDocumentByID scans the in-process tier for a document with the given
// id across all cached users. It does not read through to lower tiers.
func (m *Manager) GetDocumentByID(documentID string) *Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.entries {
		for _, document := range entry.Documents {
			if document.ID == documentID {
				found := document
				return &found
			}
		}
	}
	return nil
}

// Delete purges the user's session from every tier. Lower-tier failures are
// logged and swallowed. Reports whether an in-process entry existed.
func (m *Manager) Delete(ctx context.Context, userID string) bool {
	for _, backend := range []Backend{m.durable, m.cache} {
		if backend == nil {
			continue
		}
		if err := backend.Delete(ctx, userID); err != nil {
			slog.Error("session tier delete failed", "user", userID, "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.entries[userID]
	delete(m.entries, userID)
	return existed
}

// update writes the record in-process, evicting the least-recently-updated
// other user when the cache is full, then propagates it to the lower tiers
// in the background.
func (m *Manager) update(userID string, record *Record) {
	record.Cached = true
	record.UpdatedAt = time.Now()

	m.mu.Lock()
	if _, exists := m.entries[userID]; !exists && len(m.entries) >= m.cfg.MaxCachedUsers {
		m.evictOldestLocked(userID)
	}
	m.entries[userID] = record.Clone()
	m.mu.Unlock()

	snapshot := record.Clone()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.writeBehind(userID, snapshot)
	}()
}

// evictOldestLocked removes the least-recently-updated entry, never the
// user currently being written. Caller holds m.mu.
func (m *Manager) evictOldestLocked(protectedUserID string) {
	oldestUserID := ""
	var oldest time.Time
	for id, entry := range m.entries {
		if id == protectedUserID {
			continue
		}
		if oldestUserID == "" || entry.UpdatedAt.Before(oldest) {
			oldestUserID = id
			oldest = entry.UpdatedAt
		}
	}
	if oldestUserID != "" {
		delete(m.entries, oldestUserID)
	}
}

// writeBehind propagates the record to the fast cache first, then the
// durable store. Failures are logged, never surfaced.
func (m *Manager) writeBehind(userID string, record *Record) {
	ctx := context.Background()
	if m.cache != nil {
		if err := m.cache.Set(ctx, userID, record); err != nil {
			slog.Error("session cache write failed", "user", userID, "error", err)
		}
	}
	if m.durable != nil {
		if err := m.durable.Set(ctx, userID, record); err != nil {
			slog.Error("session durable write failed", "user", userID, "error", err)
		}
	}
}

// Close waits for in-flight background writes to drain.
func (m *Manager) Close() error {
	m.wg.Wait()
	return nil
}
