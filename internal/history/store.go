// Package history maintains the per-user scan history and favorites
// lists: bounded, ordered, deduplicated by product id, and kept
// consistent with each other. In-memory state is authoritative for the
// running session; storage is a restore point across restarts.
package history

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/storage"
)

// Config holds the store's bounds and side-effect switches.
type Config struct {
	// MaxHistoryItems bounds the history list (oldest evicted first).
	MaxHistoryItems int `json:"max_history_items"`

	// MaxFavorites bounds the favorites list (oldest added evicted first).
	MaxFavorites int `json:"max_favorites"`

	// AutoSaveOffline mirrors list writes into the offline product cache.
	AutoSaveOffline bool `json:"auto_save_offline"`
}

// DefaultConfig returns the standard bounds.
func DefaultConfig() *Config {
	return &Config{
		MaxHistoryItems: 100,
		MaxFavorites:    50,
		AutoSaveOffline: true,
	}
}

// offlineCacheBatch caps how many of the most recent history entries are
// mirrored into the offline cache per history write.
const offlineCacheBatch = 10

// ProductCache is the offline-cache collaborator. Writes are
// best-effort; the store logs failures and never surfaces them.
type ProductCache interface {
	CacheProduct(product *models.Product, assessment *models.SafetyAssessment) error
}

// ChangeEvent describes one completed in-memory mutation. Handlers run
// after the mutation and must not call back into mutating operations.
type ChangeEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id,omitempty"`
}

// Store is the scan history / favorites store for one process.
//
// Mutations update in-memory state synchronously, then persist the full
// list to its storage key on a detached goroutine. Mutations do not
// return errors: failures land in the error state readable via
// LastError. Concurrent writes to the same key are last-write-wins,
// which is accepted because in-memory state is authoritative while the
// process lives.
type Store struct {
	mu      sync.RWMutex
	config  *Config
	storage storage.Store
	cache   ProductCache
	logger  *logging.Logger

	userID    string
	history   []models.ScanHistoryItem
	favorites []models.FavoriteItem

	loading bool
	lastErr string

	onChange func(ChangeEvent)

	// Tracks detached persistence and cache writes so Flush can wait
	// for them.
	writes sync.WaitGroup
}

// NewStore creates a store for the given user. Call Load to populate
// the lists from storage.
func NewStore(st storage.Store, userID string, config *Config) *Store {
	if config == nil {
		config = DefaultConfig()
	}
	return &Store{
		config:  config,
		storage: st,
		userID:  storage.Namespace(userID),
		logger:  logging.Get().WithComponent("history"),
	}
}

// SetCache attaches the offline product cache collaborator.
func (s *Store) SetCache(cache ProductCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cache
}

// OnChange registers a callback fired after each successful in-memory
// mutation. Only one callback is held; passing nil removes it.
func (s *Store) OnChange(fn func(ChangeEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// =====================================================
// Loading and identity
// =====================================================

// Load reads both lists from the current user's storage keys. Missing
// keys yield empty lists. Read failures and malformed JSON also yield
// empty lists and set the error state; they are not retried.
func (s *Store) Load() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	user := s.userID
	s.mu.Unlock()

	history, histErr := s.loadList(storage.HistoryKey(user))
	favorites, favErr := s.loadList(storage.FavoritesKey(user))

	s.mu.Lock()
	defer s.mu.Unlock()

	// The user may have switched while this load ran; a stale load must
	// not clobber the new namespace's lists.
	if s.userID != user {
		return
	}

	s.history = history
	s.favorites = favorites
	s.loading = false

	switch {
	case histErr != nil:
		s.setErrorLocked("Failed to load scan history", histErr)
	case favErr != nil:
		s.setErrorLocked("Failed to load favorites", favErr)
	}
	s.syncFavoriteFlagsLocked()
}

func (s *Store) loadList(key string) ([]models.ScanHistoryItem, error) {
	raw, found, err := s.storage.GetItem(key)
	if err != nil {
		return []models.ScanHistoryItem{}, errors.Wrap(errors.ErrHistoryLoad, "storage read failed for "+key, err)
	}
	if !found || raw == "" {
		return []models.ScanHistoryItem{}, nil
	}

	var items []models.ScanHistoryItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []models.ScanHistoryItem{}, errors.Wrap(errors.ErrHistoryLoad, "malformed list data for "+key, err)
	}
	return items, nil
}

// SetUser switches the active identity and reloads both lists from the
// new namespace. The previous user's in-memory lists are discarded, not
// merged and not written to the new namespace. An empty id selects the
// guest namespace.
func (s *Store) SetUser(userID string) {
	namespace := storage.Namespace(userID)

	s.mu.Lock()
	if s.userID == namespace {
		s.mu.Unlock()
		return
	}
	s.userID = namespace
	s.history = nil
	s.favorites = nil
	s.mu.Unlock()

	s.Load()
}

// UserID returns the active storage namespace.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Restore replaces both lists wholesale and persists them. It fires no
// change events: restore paths (remote seeding, archive import) must
// not echo their writes back out as new mutations. Lists are clamped to
// the configured bounds and favorite flags resynced.
func (s *Store) Restore(history []models.ScanHistoryItem, favorites []models.FavoriteItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = make([]models.ScanHistoryItem, len(history))
	copy(s.history, history)
	if len(s.history) > s.config.MaxHistoryItems {
		s.history = s.history[:s.config.MaxHistoryItems]
	}

	s.favorites = make([]models.FavoriteItem, len(favorites))
	copy(s.favorites, favorites)
	if len(s.favorites) > s.config.MaxFavorites {
		s.favorites = s.favorites[:s.config.MaxFavorites]
	}

	s.syncFavoriteFlagsLocked()
	s.persistHistoryLocked()
	s.persistFavoritesLocked()
}

// =====================================================
// History mutations
// =====================================================

// AddToHistory upserts a scanned product at the front of history.
// Re-scanning an existing product id moves its entry to the front
// instead of duplicating it. The list is truncated from the tail at the
// configured bound.
func (s *Store) AddToHistory(product *models.Product, assessment *models.SafetyAssessment) {
	if product == nil || product.ID == "" {
		s.setError("Cannot add product without an id to history", nil)
		return
	}

	s.mu.Lock()
	item := models.ScanHistoryItem{
		Product:          *product,
		SafetyAssessment: assessment,
		ScannedAt:        time.Now().UTC(),
		SafetyLevel:      assessment.Level(),
		IsFavorite:       s.favoriteIDsLocked()[product.ID],
	}

	filtered := s.history[:0:0]
	for _, existing := range s.history {
		if existing.Product.ID != product.ID {
			filtered = append(filtered, existing)
		}
	}
	s.history = append([]models.ScanHistoryItem{item}, filtered...)
	if len(s.history) > s.config.MaxHistoryItems {
		s.history = s.history[:s.config.MaxHistoryItems]
	}

	s.persistHistoryLocked()
	s.mu.Unlock()

	s.notify(models.EventScanAdded, product.ID)
}

// RemoveFromHistory deletes the entry for a product id. Absent ids are
// a no-op.
func (s *Store) RemoveFromHistory(productID string) {
	s.mu.Lock()
	index := s.indexOfHistoryLocked(productID)
	if index < 0 {
		s.mu.Unlock()
		return
	}
	s.history = append(s.history[:index], s.history[index+1:]...)
	s.persistHistoryLocked()
	s.mu.Unlock()

	s.notify(models.EventScanRemoved, productID)
}

// ClearHistory empties the history list and deletes its storage key.
// Favorites are untouched.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	s.history = []models.ScanHistoryItem{}
	key := storage.HistoryKey(s.userID)
	s.mu.Unlock()

	s.removeKeyAsync(key)
	s.notify(models.EventHistoryCleared, "")
}

// =====================================================
// Favorites mutations
// =====================================================

// AddToFavorites inserts a product at the front of favorites. A product
// already favorited is left exactly where it is (no move-to-front, no
// duplicate); this asymmetry with history is deliberate. Insertion
// beyond the bound evicts the oldest added entries.
func (s *Store) AddToFavorites(product *models.Product, assessment *models.SafetyAssessment) {
	if product == nil || product.ID == "" {
		s.setError("Cannot favorite a product without an id", nil)
		return
	}

	s.mu.Lock()
	if s.indexOfFavoriteLocked(product.ID) >= 0 {
		s.mu.Unlock()
		return
	}

	item := models.FavoriteItem{
		Product:          *product,
		SafetyAssessment: assessment,
		ScannedAt:        time.Now().UTC(),
		SafetyLevel:      assessment.Level(),
		IsFavorite:       true,
	}
	s.favorites = append([]models.FavoriteItem{item}, s.favorites...)
	if len(s.favorites) > s.config.MaxFavorites {
		s.favorites = s.favorites[:s.config.MaxFavorites]
	}

	s.syncFavoriteFlagsLocked()
	s.persistFavoritesLocked()
	s.persistHistoryLocked()
	s.mu.Unlock()

	s.notify(models.EventFavoriteAdded, product.ID)
}

// RemoveFromFavorites deletes a product from favorites and clears the
// matching history entry's favorite flag. Absent ids are a no-op.
func (s *Store) RemoveFromFavorites(productID string) {
	s.mu.Lock()
	index := s.indexOfFavoriteLocked(productID)
	if index < 0 {
		s.mu.Unlock()
		return
	}
	s.favorites = append(s.favorites[:index], s.favorites[index+1:]...)

	s.syncFavoriteFlagsLocked()
	s.persistFavoritesLocked()
	s.persistHistoryLocked()
	s.mu.Unlock()

	s.notify(models.EventFavoriteRemoved, productID)
}

// ToggleFavorite flips favorite membership for a product already in
// history. An id absent from history sets the error state and mutates
// nothing.
func (s *Store) ToggleFavorite(productID string) {
	s.mu.RLock()
	index := s.indexOfHistoryLocked(productID)
	var item models.ScanHistoryItem
	if index >= 0 {
		item = s.history[index]
	}
	favorited := s.indexOfFavoriteLocked(productID) >= 0
	s.mu.RUnlock()

	if index < 0 {
		s.setError("Product not found in history: "+productID, nil)
		return
	}

	if favorited {
		s.RemoveFromFavorites(productID)
		return
	}
	s.AddToFavorites(&item.Product, item.SafetyAssessment)
}

// =====================================================
// Favorite flag maintenance
// =====================================================

// syncFavoriteFlagsLocked is the single place favorite membership is
// applied to history entries, so no mutation path can update one list's
// view without the other.
func (s *Store) syncFavoriteFlagsLocked() {
	ids := s.favoriteIDsLocked()
	for i := range s.history {
		s.history[i].IsFavorite = ids[s.history[i].Product.ID]
	}
}

func (s *Store) favoriteIDsLocked() map[string]bool {
	ids := make(map[string]bool, len(s.favorites))
	for _, f := range s.favorites {
		ids[f.Product.ID] = true
	}
	return ids
}

func (s *Store) indexOfHistoryLocked(productID string) int {
	for i := range s.history {
		if s.history[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) indexOfFavoriteLocked(productID string) int {
	for i := range s.favorites {
		if s.favorites[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// =====================================================
// Persistence and side effects
// =====================================================

// persistHistoryLocked snapshots history under the caller's lock and
// writes it on a detached goroutine. A failed write keeps the in-memory
// state (this session's next successful write is the de facto retry)
// and sets the error state. The top slice of history is mirrored to the
// offline cache when enabled.
func (s *Store) persistHistoryLocked() {
	data, err := json.Marshal(s.history)
	if err != nil {
		s.setErrorLocked("Failed to encode scan history", err)
		return
	}
	s.writeAsync(storage.HistoryKey(s.userID), string(data), "Failed to save scan history")

	if s.config.AutoSaveOffline && s.cache != nil {
		batch := s.history
		if len(batch) > offlineCacheBatch {
			batch = batch[:offlineCacheBatch]
		}
		s.cacheAsync(batch)
	}
}

// persistFavoritesLocked snapshots favorites under the caller's lock
// and writes it on a detached goroutine. All favorites are mirrored to
// the offline cache when enabled.
func (s *Store) persistFavoritesLocked() {
	data, err := json.Marshal(s.favorites)
	if err != nil {
		s.setErrorLocked("Failed to encode favorites", err)
		return
	}
	s.writeAsync(storage.FavoritesKey(s.userID), string(data), "Failed to save favorites")

	if s.config.AutoSaveOffline && s.cache != nil {
		s.cacheAsync(s.favorites)
	}
}

func (s *Store) writeAsync(key, value, failureMsg string) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		if err := s.storage.SetItem(key, value); err != nil {
			s.setError(failureMsg, errors.Wrap(errors.ErrHistoryPersist, failureMsg, err))
		}
	}()
}

func (s *Store) removeKeyAsync(key string) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		if err := s.storage.RemoveItem(key); err != nil {
			s.setError("Failed to clear scan history", errors.Wrap(errors.ErrHistoryPersist, "storage delete failed", err))
		}
	}()
}

// cacheAsync mirrors items into the offline cache on a detached
// goroutine. Failures are logged and never surface to the error state
// or the caller; these writes are outside the mutation's consistency
// guarantees.
func (s *Store) cacheAsync(items []models.ScanHistoryItem) {
	if len(items) == 0 {
		return
	}
	batch := make([]models.ScanHistoryItem, len(items))
	copy(batch, items)

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		for i := range batch {
			product := batch[i].Product
			if err := s.cache.CacheProduct(&product, batch[i].SafetyAssessment); err != nil {
				s.logger.Warn("offline cache write failed", map[string]interface{}{
					"product_id": product.ID,
					"error":      err.Error(),
				})
			}
		}
	}()
}

// Flush waits for all detached persistence and cache writes issued so
// far. Shells call it before shutdown; tests call it before asserting
// persisted state.
func (s *Store) Flush() {
	s.writes.Wait()
}

// =====================================================
// Error state
// =====================================================

func (s *Store) setError(msg string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErrorLocked(msg, err)
}

func (s *Store) setErrorLocked(msg string, err error) {
	s.lastErr = msg
	if err != nil {
		s.logger.ErrorWithCode(msg, string(errors.CodeOf(err)), err)
	} else {
		s.logger.Warn(msg)
	}
}

// LastError returns the current error state, or "" when clear. Mutation
// failures are reported here rather than as return values.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ClearError resets the error state.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
}

// Loading reports whether an initial or identity-change load is in
// progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) notify(eventType, productID string) {
	s.mu.RLock()
	fn := s.onChange
	user := s.userID
	s.mu.RUnlock()

	if fn != nil {
		fn(ChangeEvent{Type: eventType, UserID: user, ProductID: productID})
	}
}
