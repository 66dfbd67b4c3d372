package history

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/storage"
)

func newTestStore(t *testing.T, userID string, config *Config) (*Store, *storage.MemoryStore) {
	t.Helper()
	ms := storage.NewMemoryStore()
	s := NewStore(ms, userID, config)
	s.Load()
	return s, ms
}

func product(id, name string) *models.Product {
	return &models.Product{
		ID:    id,
		Name:  name,
		Brand: "Acme Foods",
	}
}

func assessment(level models.SafetyLevel) *models.SafetyAssessment {
	return &models.SafetyAssessment{OverallSafety: level}
}

// historyIDs projects the history list onto product ids for order checks.
func historyIDs(s *Store) []string {
	items := s.History()
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.Product.ID
	}
	return ids
}

func favoriteIDs(s *Store) []string {
	items := s.Favorites()
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.Product.ID
	}
	return ids
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// fakeCache records offline cache writes.
type fakeCache struct {
	mu  sync.Mutex
	err error
	ids []string
}

func (f *fakeCache) CacheProduct(p *models.Product, a *models.SafetyAssessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, p.ID)
	return nil
}

func (f *fakeCache) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

func (f *fakeCache) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = nil
}

// =====================================================
// History mutations
// =====================================================

func TestAddToHistory_ordering(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.AddToHistory(product("prod-b", "Oat Milk"), nil)
	s.AddToHistory(product("prod-c", "Rice Crackers"), nil)

	if got := historyIDs(s); !equalIDs(got, []string{"prod-c", "prod-b", "prod-a"}) {
		t.Errorf("history order = %v, want most-recent-first", got)
	}
	if s.LastError() != "" {
		t.Errorf("LastError() = %q, want clear", s.LastError())
	}
}

func TestAddToHistory_upsertMovesToFront(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.AddToHistory(product("prod-b", "Oat Milk"), nil)
	s.AddToHistory(product("prod-a", "Almond Bar"), assessment(models.SafetyDanger))

	ids := historyIDs(s)
	if !equalIDs(ids, []string{"prod-a", "prod-b"}) {
		t.Errorf("history = %v, want re-scan moved to front without duplicate", ids)
	}

	item, ok := s.GetHistoryItem("prod-a")
	if !ok {
		t.Fatal("GetHistoryItem(prod-a) not found")
	}
	if item.SafetyLevel != models.SafetyDanger {
		t.Errorf("SafetyLevel = %q, want refreshed assessment", item.SafetyLevel)
	}
}

func TestAddToHistory_eviction(t *testing.T) {
	s, _ := newTestStore(t, "u1", &Config{MaxHistoryItems: 3, MaxFavorites: 50})

	for _, id := range []string{"prod-a", "prod-b", "prod-c", "prod-d"} {
		s.AddToHistory(product(id, "Item "+id), nil)
	}

	if got := historyIDs(s); !equalIDs(got, []string{"prod-d", "prod-c", "prod-b"}) {
		t.Errorf("history = %v, want [prod-d prod-c prod-b] with oldest evicted", got)
	}
}

func TestAddToHistory_lengthBound(t *testing.T) {
	s, _ := newTestStore(t, "u1", &Config{MaxHistoryItems: 5, MaxFavorites: 50})

	ids := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	for _, id := range ids {
		s.AddToHistory(product(id, "Item "+id), nil)
	}

	if got := len(s.History()); got != 5 {
		t.Errorf("len(history) = %d, want min(adds, max) = 5", got)
	}
}

func TestAddToHistory_rejectsMissingID(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	s.AddToHistory(&models.Product{Name: "No ID"}, nil)
	if len(s.History()) != 0 {
		t.Error("history mutated for product without id")
	}
	if s.LastError() == "" {
		t.Error("LastError() empty, want error state set")
	}

	s.ClearError()
	s.AddToHistory(nil, nil)
	if s.LastError() == "" {
		t.Error("LastError() empty for nil product")
	}
}

func TestAddToHistory_persists(t *testing.T) {
	s, ms := newTestStore(t, "u1", nil)

	s.AddToHistory(product("prod-a", "Almond Bar"), assessment(models.SafetySafe))
	s.Flush()

	raw, found, err := ms.GetItem(storage.HistoryKey("u1"))
	if err != nil || !found {
		t.Fatalf("persisted history missing (found=%v, err=%v)", found, err)
	}
	var items []models.ScanHistoryItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		t.Fatalf("persisted history is not valid JSON: %v", err)
	}
	if len(items) != 1 || items[0].Product.ID != "prod-a" {
		t.Errorf("persisted items = %+v", items)
	}
}

func TestRemoveFromHistory(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.AddToHistory(product("prod-b", "Oat Milk"), nil)

	s.RemoveFromHistory("prod-a")
	if got := historyIDs(s); !equalIDs(got, []string{"prod-b"}) {
		t.Errorf("history = %v after removal", got)
	}

	// Absent id is a no-op and not an error.
	s.RemoveFromHistory("prod-z")
	if len(s.History()) != 1 {
		t.Error("no-op removal changed history")
	}
	if s.LastError() != "" {
		t.Errorf("LastError() = %q after no-op removal", s.LastError())
	}
}

func TestClearHistory(t *testing.T) {
	s, ms := newTestStore(t, "u1", nil)

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.AddToFavorites(product("prod-b", "Oat Milk"), nil)
	s.Flush()

	s.ClearHistory()
	s.Flush()

	if len(s.History()) != 0 {
		t.Error("history not empty after ClearHistory")
	}
	if len(s.Favorites()) != 1 {
		t.Error("ClearHistory touched favorites")
	}

	// The storage key is gone, so the next load starts empty.
	if _, found, _ := ms.GetItem(storage.HistoryKey("u1")); found {
		t.Error("history key still present after ClearHistory")
	}
	s.Load()
	if len(s.History()) != 0 {
		t.Error("history reappeared after reload")
	}
}

// =====================================================
// Favorites mutations
// =====================================================

func TestAddToFavorites_setsFlags(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	p := product("prod-a", "Almond Bar")
	s.AddToHistory(p, nil)
	s.AddToFavorites(p, nil)

	if !s.IsFavorite("prod-a") {
		t.Error("IsFavorite(prod-a) = false after AddToFavorites")
	}

	history := s.History()
	if !history[0].IsFavorite {
		t.Error("history[0].IsFavorite = false, want true")
	}
	favorites := s.Favorites()
	if len(favorites) != 1 || favorites[0].Product.ID != "prod-a" {
		t.Errorf("favorites = %v", favoriteIDs(s))
	}
}

func TestAddToFavorites_ignoresExisting(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	s.AddToFavorites(product("prod-a", "Almond Bar"), nil)
	s.AddToFavorites(product("prod-b", "Oat Milk"), nil)

	// Re-favoriting prod-a must not move it to the front or duplicate it.
	s.AddToFavorites(product("prod-a", "Almond Bar"), nil)

	if got := favoriteIDs(s); !equalIDs(got, []string{"prod-b", "prod-a"}) {
		t.Errorf("favorites = %v, want unchanged [prod-b prod-a]", got)
	}
}

func TestAddToFavorites_evictionClearsHistoryFlag(t *testing.T) {
	s, _ := newTestStore(t, "u1", &Config{MaxHistoryItems: 100, MaxFavorites: 2})

	for _, id := range []string{"prod-a", "prod-b", "prod-c"} {
		s.AddToHistory(product(id, "Item "+id), nil)
	}
	s.AddToFavorites(product("prod-a", "Item prod-a"), nil)
	s.AddToFavorites(product("prod-b", "Item prod-b"), nil)
	s.AddToFavorites(product("prod-c", "Item prod-c"), nil)

	if got := favoriteIDs(s); !equalIDs(got, []string{"prod-c", "prod-b"}) {
		t.Errorf("favorites = %v, want oldest added evicted", got)
	}

	// The evicted favorite's history entry must drop its flag.
	item, _ := s.GetHistoryItem("prod-a")
	if item.IsFavorite {
		t.Error("evicted favorite still flagged in history")
	}
	if !s.IsFavorite("prod-c") || !s.IsFavorite("prod-b") || s.IsFavorite("prod-a") {
		t.Error("favorite membership inconsistent after eviction")
	}
}

func TestRemoveFromFavorites_clearsFlag(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	p := product("prod-a", "Almond Bar")
	s.AddToHistory(p, nil)
	s.AddToFavorites(p, nil)
	s.RemoveFromFavorites("prod-a")

	if s.IsFavorite("prod-a") {
		t.Error("IsFavorite = true after removal")
	}
	item, _ := s.GetHistoryItem("prod-a")
	if item.IsFavorite {
		t.Error("history entry still flagged after favorite removal")
	}
	if len(s.Favorites()) != 0 {
		t.Errorf("favorites = %v, want empty", favoriteIDs(s))
	}
}

func TestToggleFavorite(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	s.AddToHistory(product("prod-a", "Almond Bar"), assessment(models.SafetySafe))

	s.ToggleFavorite("prod-a")
	if !s.IsFavorite("prod-a") {
		t.Fatal("first toggle did not favorite")
	}

	s.ToggleFavorite("prod-a")
	if s.IsFavorite("prod-a") {
		t.Fatal("second toggle did not unfavorite")
	}
	item, _ := s.GetHistoryItem("prod-a")
	if item.IsFavorite {
		t.Error("history flag inconsistent after toggle off")
	}
}

func TestToggleFavorite_notInHistory(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	before := historyIDs(s)

	s.ToggleFavorite("prod-z")

	if s.LastError() == "" {
		t.Error("LastError() empty, want not-found error state")
	}
	if !equalIDs(historyIDs(s), before) {
		t.Error("history changed by failed toggle")
	}
	if len(s.Favorites()) != 0 {
		t.Error("favorites changed by failed toggle")
	}
}

// =====================================================
// Error state and persistence failures
// =====================================================

func TestPersistFailure_keepsMemoryState(t *testing.T) {
	s, ms := newTestStore(t, "u1", nil)

	ms.SetErr = errors.New("disk full")
	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.Flush()

	// In-memory state is not rolled back and the failure surfaces only
	// through the error state.
	if len(s.History()) != 1 {
		t.Error("in-memory history rolled back on persist failure")
	}
	if s.LastError() == "" {
		t.Error("LastError() empty after persist failure")
	}

	// The next successful mutation writes the full current list.
	ms.SetErr = nil
	s.ClearError()
	s.AddToHistory(product("prod-b", "Oat Milk"), nil)
	s.Flush()

	raw, found, _ := ms.GetItem(storage.HistoryKey("u1"))
	if !found {
		t.Fatal("history not persisted after recovery")
	}
	var items []models.ScanHistoryItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		t.Fatalf("persisted history invalid: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("persisted %d items, want both entries", len(items))
	}
}

func TestLoad_failureYieldsEmptyLists(t *testing.T) {
	ms := storage.NewMemoryStore()
	ms.GetErr = errors.New("storage unavailable")

	s := NewStore(ms, "u1", nil)
	s.Load()

	if len(s.History()) != 0 || len(s.Favorites()) != 0 {
		t.Error("lists not empty after load failure")
	}
	if s.history == nil || s.favorites == nil {
		t.Error("lists should initialize empty, not nil, after load failure")
	}
	if s.LastError() == "" {
		t.Error("LastError() empty after load failure")
	}
}

func TestLoad_malformedJSON(t *testing.T) {
	ms := storage.NewMemoryStore()
	ms.SetItem(storage.HistoryKey("u1"), "{not json")

	s := NewStore(ms, "u1", nil)
	s.Load()

	if len(s.History()) != 0 {
		t.Error("history not empty for malformed data")
	}
	if s.LastError() == "" {
		t.Error("LastError() empty for malformed data")
	}
}

func TestLoad_restoresPersistedState(t *testing.T) {
	s, ms := newTestStore(t, "u1", nil)
	s.AddToHistory(product("prod-a", "Almond Bar"), assessment(models.SafetySafe))
	s.AddToFavorites(product("prod-a", "Almond Bar"), assessment(models.SafetySafe))
	s.Flush()

	// A fresh store over the same storage sees the same lists.
	restored := NewStore(ms, "u1", nil)
	restored.Load()

	if !equalIDs(historyIDs(restored), []string{"prod-a"}) {
		t.Errorf("restored history = %v", historyIDs(restored))
	}
	if !restored.IsFavorite("prod-a") {
		t.Error("restored favorites lost membership")
	}
	item, _ := restored.GetHistoryItem("prod-a")
	if !item.IsFavorite {
		t.Error("restored history flag inconsistent")
	}
}

func TestLoad_resyncsStaleFlags(t *testing.T) {
	ms := storage.NewMemoryStore()

	// Persisted history claims prod-a is a favorite but the favorites
	// list is empty; membership wins on load.
	stale := []models.ScanHistoryItem{{
		Product:     models.Product{ID: "prod-a", Name: "Almond Bar"},
		SafetyLevel: models.SafetySafe,
		IsFavorite:  true,
	}}
	data, _ := json.Marshal(stale)
	ms.SetItem(storage.HistoryKey("u1"), string(data))

	s := NewStore(ms, "u1", nil)
	s.Load()

	item, ok := s.GetHistoryItem("prod-a")
	if !ok {
		t.Fatal("history entry missing")
	}
	if item.IsFavorite {
		t.Error("stale favorite flag survived load")
	}
}

// =====================================================
// Identity switching
// =====================================================

func TestSetUser_switchesNamespaces(t *testing.T) {
	ms := storage.NewMemoryStore()

	// Seed u2's lists directly in storage.
	u2History := []models.ScanHistoryItem{{
		Product:     models.Product{ID: "prod-z", Name: "Zucchini Chips"},
		SafetyLevel: models.SafetySafe,
	}}
	u2Data, _ := json.Marshal(u2History)
	ms.SetItem(storage.HistoryKey("u2"), string(u2Data))

	s := NewStore(ms, "u1", nil)
	s.Load()
	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.Flush()

	s.SetUser("u2")

	// u1's in-memory list is discarded, u2's is visible.
	if got := historyIDs(s); !equalIDs(got, []string{"prod-z"}) {
		t.Errorf("history after switch = %v, want u2's list", got)
	}

	// The switch wrote nothing: u2's stored value is untouched and u1's
	// list is still under u1's key.
	raw, _, _ := ms.GetItem(storage.HistoryKey("u2"))
	if raw != string(u2Data) {
		t.Error("u2's stored history was modified by the switch")
	}
	rawU1, found, _ := ms.GetItem(storage.HistoryKey("u1"))
	if !found {
		t.Fatal("u1's history disappeared")
	}
	var u1Items []models.ScanHistoryItem
	json.Unmarshal([]byte(rawU1), &u1Items)
	if len(u1Items) != 1 || u1Items[0].Product.ID != "prod-a" {
		t.Errorf("u1's persisted history = %+v", u1Items)
	}
}

func TestSetUser_emptyIsGuest(t *testing.T) {
	s, ms := newTestStore(t, "", nil)
	if s.UserID() != storage.GuestNamespace {
		t.Errorf("UserID() = %q, want guest", s.UserID())
	}

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.Flush()

	if _, found, _ := ms.GetItem("@scanHistory_guest"); !found {
		t.Error("guest history key not written")
	}
}

func TestSetUser_sameUserNoReload(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)
	s.AddToHistory(product("prod-a", "Almond Bar"), nil)

	// Same id: nothing reloads, unsaved in-memory state stays.
	s.SetUser("u1")
	if len(s.History()) != 1 {
		t.Error("SetUser with same id reset state")
	}
}

// =====================================================
// Offline cache side effects
// =====================================================

func TestOfflineCache_historyWritesCapAtTen(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)
	cache := &fakeCache{}
	s.SetCache(cache)

	ids := []string{"p01", "p02", "p03", "p04", "p05", "p06", "p07", "p08", "p09", "p10", "p11", "p12"}
	for _, id := range ids {
		s.AddToHistory(product(id, "Item "+id), nil)
	}
	s.Flush()
	cache.reset()

	// One more history write mirrors only the ten most recent entries.
	s.AddToHistory(product("p13", "Item p13"), nil)
	s.Flush()

	if got := cache.count(); got != 10 {
		t.Errorf("cache writes = %d for one history mutation, want 10", got)
	}
}

func TestOfflineCache_favoritesWriteAllEntries(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)
	cache := &fakeCache{}
	s.SetCache(cache)

	// No history entries, so only the favorites mirror runs.
	s.AddToFavorites(product("prod-a", "Almond Bar"), nil)
	s.AddToFavorites(product("prod-b", "Oat Milk"), nil)
	s.Flush()
	cache.reset()

	s.AddToFavorites(product("prod-c", "Rice Crackers"), nil)
	s.Flush()

	if got := cache.count(); got != 3 {
		t.Errorf("cache writes = %d, want all 3 favorites", got)
	}
}

func TestOfflineCache_failuresAreSilent(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)
	cache := &fakeCache{err: errors.New("cache wedged")}
	s.SetCache(cache)

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.Flush()

	if s.LastError() != "" {
		t.Errorf("LastError() = %q, want cache failure kept silent", s.LastError())
	}
	if len(s.History()) != 1 {
		t.Error("cache failure affected the primary mutation")
	}
}

func TestOfflineCache_disabled(t *testing.T) {
	s, _ := newTestStore(t, "u1", &Config{MaxHistoryItems: 100, MaxFavorites: 50, AutoSaveOffline: false})
	cache := &fakeCache{}
	s.SetCache(cache)

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.AddToFavorites(product("prod-a", "Almond Bar"), nil)
	s.Flush()

	if got := cache.count(); got != 0 {
		t.Errorf("cache writes = %d with auto-save disabled, want 0", got)
	}
}

// =====================================================
// Change notification
// =====================================================

func TestOnChange_firesPerMutation(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	var events []ChangeEvent
	s.OnChange(func(e ChangeEvent) { events = append(events, e) })

	s.AddToHistory(product("prod-a", "Almond Bar"), nil)
	s.AddToFavorites(product("prod-a", "Almond Bar"), nil)
	s.RemoveFromFavorites("prod-a")
	s.RemoveFromHistory("prod-a")
	s.ClearHistory()

	want := []string{
		models.EventScanAdded,
		models.EventFavoriteAdded,
		models.EventFavoriteRemoved,
		models.EventScanRemoved,
		models.EventHistoryCleared,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event[%d].Type = %q, want %q", i, e.Type, want[i])
		}
		if e.UserID != "u1" {
			t.Errorf("event[%d].UserID = %q", i, e.UserID)
		}
	}
}

func TestOnChange_noEventOnFailedToggle(t *testing.T) {
	s, _ := newTestStore(t, "u1", nil)

	fired := 0
	s.OnChange(func(ChangeEvent) { fired++ })

	s.ToggleFavorite("prod-missing")
	if fired != 0 {
		t.Errorf("onChange fired %d times for failed toggle, want 0", fired)
	}
}

// =====================================================
// Restore
// =====================================================

func TestRestore_replacesListsWithoutEvents(t *testing.T) {
	s, mem := newTestStore(t, "u1", nil)
	s.AddToHistory(product("prod-old", "Stale Bar"), nil)

	fired := 0
	s.OnChange(func(ChangeEvent) { fired++ })

	items := []models.ScanHistoryItem{
		{Product: *product("prod-a", "Almond Bar"), ScannedAt: time.Now(), SafetyLevel: models.SafetySafe},
		{Product: *product("prod-b", "Oat Bar"), ScannedAt: time.Now(), SafetyLevel: models.SafetyCaution},
	}
	favs := []models.FavoriteItem{
		{Product: *product("prod-b", "Oat Bar"), ScannedAt: time.Now(), SafetyLevel: models.SafetyCaution},
	}
	s.Restore(items, favs)
	s.Flush()

	if got := historyIDs(s); !equalIDs(got, []string{"prod-a", "prod-b"}) {
		t.Errorf("history after restore = %v", got)
	}
	if got := favoriteIDs(s); !equalIDs(got, []string{"prod-b"}) {
		t.Errorf("favorites after restore = %v", got)
	}
	if fired != 0 {
		t.Errorf("restore fired %d change events, want 0", fired)
	}

	// Favorite flags are recomputed from the restored favorites list.
	item, ok := s.GetHistoryItem("prod-b")
	if !ok || !item.IsFavorite {
		t.Errorf("prod-b IsFavorite = %v after restore", item.IsFavorite)
	}

	// Both lists land in storage.
	if _, ok, _ := mem.GetItem(storage.HistoryKey("u1")); !ok {
		t.Error("history key missing after restore")
	}
	if _, ok, _ := mem.GetItem(storage.FavoritesKey("u1")); !ok {
		t.Error("favorites key missing after restore")
	}
}

func TestRestore_clampsToBounds(t *testing.T) {
	s, _ := newTestStore(t, "u1", &Config{MaxHistoryItems: 2, MaxFavorites: 1, AutoSaveOffline: false})

	items := []models.ScanHistoryItem{
		{Product: *product("prod-a", "A"), ScannedAt: time.Now()},
		{Product: *product("prod-b", "B"), ScannedAt: time.Now()},
		{Product: *product("prod-c", "C"), ScannedAt: time.Now()},
	}
	s.Restore(items, items)

	if got := historyIDs(s); !equalIDs(got, []string{"prod-a", "prod-b"}) {
		t.Errorf("history after clamped restore = %v", got)
	}
	if got := favoriteIDs(s); !equalIDs(got, []string{"prod-a"}) {
		t.Errorf("favorites after clamped restore = %v", got)
	}
}
