// Integration tests for the offline scan flow. Every test here runs
// against a file-backed SQLite database with no network access at all:
// scans, favorites, product lookups, and search must keep working when
// the device has no connectivity.
package integration

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/db"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/history"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/offline"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/storage"
)

// openOfflineDB opens (or reopens) the database file at path and brings
// its schema up to date. Reopening the same path must be a no-op for
// migrations.
func openOfflineDB(t *testing.T, path string) *db.DB {
	t.Helper()

	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return database
}

// scanEnv bundles the pieces a device assembles for offline scanning:
// the product cache and the history store, both backed by one database.
type scanEnv struct {
	repo  *db.Repository
	cache *offline.Cache
	store *history.Store
}

func newScanEnv(database *db.DB, userID string) *scanEnv {
	repo := db.NewRepository(database.DB)
	cache := offline.NewCache(repo, nil)
	store := history.NewStore(storage.NewSQLiteStore(repo), userID, nil)
	store.SetCache(cache)
	store.Load()
	return &scanEnv{repo: repo, cache: cache, store: store}
}

func scannedProduct(id, barcode, name, category string) *models.Product {
	return &models.Product{
		ID:          id,
		Barcode:     barcode,
		Name:        name,
		Brand:       "Acme Foods",
		Category:    category,
		Ingredients: "oats, honey, almonds",
		Allergens:   "tree nuts",
	}
}

func safety(level models.SafetyLevel) *models.SafetyAssessment {
	return &models.SafetyAssessment{OverallSafety: level}
}

// TestOfflineScanFlow walks the whole scan pipeline without a network:
// record scans, favorite one, look products back up from the cache, and
// search both the cache and the history list.
func TestOfflineScanFlow(t *testing.T) {
	database := openOfflineDB(t, filepath.Join(t.TempDir(), "scanflow.db"))
	defer database.Close()

	env := newScanEnv(database, "user-offline")

	t.Log("Testing offline scan recording...")

	t.Run("Scan", func(t *testing.T) {
		env.store.AddToHistory(scannedProduct("prod-oats", "0001112223334", "Honey Oat Clusters", "cereal"), safety(models.SafetySafe))
		env.store.AddToHistory(scannedProduct("prod-bar", "0001112223341", "Almond Snack Bar", "snacks"), safety(models.SafetyDanger))
		env.store.AddToHistory(scannedProduct("prod-granola", "0001112223358", "Maple Granola", "cereal"), safety(models.SafetySafe))

		items := env.store.History()
		if len(items) != 3 {
			t.Fatalf("Expected 3 history items, got %d", len(items))
		}
		if items[0].Product.ID != "prod-granola" {
			t.Errorf("Expected newest scan first, got %s", items[0].Product.ID)
		}
		if items[0].SafetyLevel != models.SafetySafe {
			t.Errorf("Expected denormalized safety level %q, got %q", models.SafetySafe, items[0].SafetyLevel)
		}
		if got := env.store.LastError(); got != "" {
			t.Errorf("Expected no error state, got %q", got)
		}
	})

	t.Run("Rescan", func(t *testing.T) {
		// Scanning a known product moves it to the front, never duplicates.
		env.store.AddToHistory(scannedProduct("prod-oats", "0001112223334", "Honey Oat Clusters", "cereal"), safety(models.SafetySafe))

		items := env.store.History()
		if len(items) != 3 {
			t.Fatalf("Expected rescan to keep 3 items, got %d", len(items))
		}
		if items[0].Product.ID != "prod-oats" {
			t.Errorf("Expected rescanned product first, got %s", items[0].Product.ID)
		}
	})

	t.Run("Favorite", func(t *testing.T) {
		env.store.ToggleFavorite("prod-granola")

		favorites := env.store.Favorites()
		if len(favorites) != 1 || favorites[0].Product.ID != "prod-granola" {
			t.Fatalf("Expected prod-granola in favorites, got %+v", favorites)
		}

		item, ok := env.store.GetHistoryItem("prod-granola")
		if !ok {
			t.Fatal("Expected prod-granola in history")
		}
		if !item.IsFavorite {
			t.Error("Expected is_favorite mirrored onto the history entry")
		}
	})

	t.Run("ProductLookup", func(t *testing.T) {
		// Cache writes ride on detached goroutines; wait for them.
		env.store.Flush()

		product, assessment, err := env.cache.Product("prod-bar")
		if err != nil {
			t.Fatalf("Failed to resolve cached product: %v", err)
		}
		if product.Name != "Almond Snack Bar" {
			t.Errorf("Expected cached name, got %q", product.Name)
		}
		if assessment == nil || assessment.OverallSafety != models.SafetyDanger {
			t.Errorf("Expected danger assessment from cache, got %+v", assessment)
		}

		byBarcode, _, err := env.cache.ProductByBarcode("0001112223358")
		if err != nil {
			t.Fatalf("Failed to resolve product by barcode: %v", err)
		}
		if byBarcode.ID != "prod-granola" {
			t.Errorf("Expected prod-granola by barcode, got %s", byBarcode.ID)
		}
	})

	t.Run("Search", func(t *testing.T) {
		env.store.Flush()

		resp, err := env.cache.Search(db.SearchOptions{Query: "granola", Limit: 10})
		if err != nil {
			t.Fatalf("Cache search failed: %v", err)
		}
		if resp.Total != 1 || resp.Results[0].Product.Name != "Maple Granola" {
			t.Errorf("Expected one granola hit, got total=%d results=%+v", resp.Total, resp.Results)
		}

		hits := env.store.SearchHistory("almond")
		if len(hits) != 1 || hits[0].Product.ID != "prod-bar" {
			t.Errorf("Expected history search to find prod-bar, got %+v", hits)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats := env.store.GetHistoryStats()
		if stats.TotalScans != 3 {
			t.Errorf("Expected 3 total scans, got %d", stats.TotalScans)
		}
		if stats.SafeProducts != 2 {
			t.Errorf("Expected 2 safe products, got %d", stats.SafeProducts)
		}
		if stats.DangerousProducts != 1 {
			t.Errorf("Expected 1 dangerous product, got %d", stats.DangerousProducts)
		}
		if stats.FavoriteCount != 1 {
			t.Errorf("Expected 1 favorite, got %d", stats.FavoriteCount)
		}

		recent := env.store.GetRecentSafeProducts(5)
		for _, item := range recent {
			if item.SafetyLevel != models.SafetySafe {
				t.Errorf("Expected only safe products, got %s (%s)", item.Product.ID, item.SafetyLevel)
			}
		}
		if len(recent) != 2 {
			t.Errorf("Expected 2 recent safe products, got %d", len(recent))
		}
	})
}

// TestOfflinePersistence verifies scans and favorites survive a full
// process restart: close the database, reopen the same file, reload.
func TestOfflinePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	// Phase 1: record activity and shut down.
	t.Log("Phase 1: Recording scans...")
	database1 := openOfflineDB(t, dbPath)
	env1 := newScanEnv(database1, "user-persist")

	env1.store.AddToHistory(scannedProduct("prod-oats", "0001112223334", "Honey Oat Clusters", "cereal"), safety(models.SafetySafe))
	env1.store.AddToHistory(scannedProduct("prod-bar", "0001112223341", "Almond Snack Bar", "snacks"), safety(models.SafetyDanger))
	env1.store.ToggleFavorite("prod-oats")
	env1.store.Flush()

	if got := env1.store.LastError(); got != "" {
		t.Fatalf("Persistence failed before restart: %q", got)
	}
	if err := database1.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	// Phase 2: reopen and verify everything came back.
	t.Log("Phase 2: Reopening database...")
	time.Sleep(100 * time.Millisecond)

	database2 := openOfflineDB(t, dbPath)
	defer database2.Close()

	env2 := newScanEnv(database2, "user-persist")

	items := env2.store.History()
	if len(items) != 2 {
		t.Fatalf("Expected 2 history items after restart, got %d", len(items))
	}
	if items[0].Product.ID != "prod-bar" {
		t.Errorf("Expected order preserved across restart, got %s first", items[0].Product.ID)
	}
	if !items[1].IsFavorite {
		t.Error("Expected favorite flag preserved across restart")
	}

	favorites := env2.store.Favorites()
	if len(favorites) != 1 || favorites[0].Product.ID != "prod-oats" {
		t.Fatalf("Expected prod-oats favorite after restart, got %+v", favorites)
	}

	product, assessment, err := env2.cache.ProductByBarcode("0001112223341")
	if err != nil {
		t.Fatalf("Failed to resolve cached product after restart: %v", err)
	}
	if product.Name != "Almond Snack Bar" {
		t.Errorf("Expected cached product after restart, got %q", product.Name)
	}
	if assessment == nil || assessment.OverallSafety != models.SafetyDanger {
		t.Errorf("Expected assessment preserved in cache, got %+v", assessment)
	}

	t.Log("Data successfully persisted across database restart")
}

// TestOfflineIdentitySwitch verifies each identity keeps its own lists
// on one device, and that an anonymous store uses the guest namespace.
func TestOfflineIdentitySwitch(t *testing.T) {
	database := openOfflineDB(t, filepath.Join(t.TempDir(), "identity.db"))
	defer database.Close()

	env := newScanEnv(database, "user-a")

	env.store.AddToHistory(scannedProduct("prod-oats", "0001112223334", "Honey Oat Clusters", "cereal"), safety(models.SafetySafe))
	env.store.ToggleFavorite("prod-oats")
	env.store.Flush()

	// Switching replaces the in-memory lists with the new user's data.
	env.store.SetUser("user-b")
	if len(env.store.History()) != 0 || len(env.store.Favorites()) != 0 {
		t.Fatal("Expected empty lists for a fresh user")
	}

	env.store.AddToHistory(scannedProduct("prod-bar", "0001112223341", "Almond Snack Bar", "snacks"), safety(models.SafetyDanger))
	env.store.Flush()

	// Switching back restores the first user's lists untouched.
	env.store.SetUser("user-a")
	items := env.store.History()
	if len(items) != 1 || items[0].Product.ID != "prod-oats" {
		t.Fatalf("Expected user-a history restored, got %+v", items)
	}
	if !env.store.IsFavorite("prod-oats") {
		t.Error("Expected user-a favorite restored")
	}

	// An empty identity is stored under the shared guest namespace.
	guest := history.NewStore(storage.NewSQLiteStore(env.repo), "", nil)
	guest.Load()
	if guest.UserID() != storage.GuestNamespace {
		t.Errorf("Expected guest namespace, got %q", guest.UserID())
	}
	guest.AddToHistory(scannedProduct("prod-granola", "0001112223358", "Maple Granola", "cereal"), safety(models.SafetySafe))
	guest.Flush()

	if got := guest.LastError(); got != "" {
		t.Errorf("Guest persistence failed: %q", got)
	}
}

// TestOfflineConcurrentScans drives the store from many goroutines at
// once. Mutations are synchronous under the store lock; persistence
// fans out to detached writers that Flush must collect.
func TestOfflineConcurrentScans(t *testing.T) {
	database := openOfflineDB(t, filepath.Join(t.TempDir(), "concurrent.db"))
	defer database.Close()

	env := newScanEnv(database, "user-swarm")

	const numGoroutines = 10
	const scansPerGoroutine = 5

	t.Logf("Testing %d concurrent scanners...", numGoroutines)

	var wg sync.WaitGroup
	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < scansPerGoroutine; i++ {
				id := fmt.Sprintf("prod-%d-%d", worker, i)
				barcode := fmt.Sprintf("00011122%03d%03d", worker, i)
				env.store.AddToHistory(scannedProduct(id, barcode, fmt.Sprintf("Concurrent Item %d-%d", worker, i), "snacks"), safety(models.SafetySafe))
			}
		}(g)
	}
	wg.Wait()
	env.store.Flush()

	if got := env.store.LastError(); got != "" {
		t.Fatalf("Concurrent persistence failed: %q", got)
	}

	expected := numGoroutines * scansPerGoroutine
	if got := len(env.store.History()); got != expected {
		t.Errorf("Expected %d history items, got %d", expected, got)
	}

	// A fresh store over the same storage sees the final list.
	reread := history.NewStore(storage.NewSQLiteStore(env.repo), "user-swarm", nil)
	reread.Load()
	if got := len(reread.History()); got != expected {
		t.Errorf("Expected %d persisted items, got %d", expected, got)
	}

	t.Logf("Successfully handled %d concurrent scans", expected)
}

// TestOfflinePerformance100Scans records a realistic day of heavy
// scanning and checks the bounded lists and cache cap hold.
func TestOfflinePerformance100Scans(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}

	database := openOfflineDB(t, filepath.Join(t.TempDir(), "perf.db"))
	defer database.Close()

	env := newScanEnv(database, "user-perf")

	t.Log("Testing offline scan performance for 150 items...")

	start := time.Now()
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("prod-%03d", i)
		barcode := fmt.Sprintf("0001112%06d", i)
		env.store.AddToHistory(scannedProduct(id, barcode, fmt.Sprintf("Performance Test Item %d", i), "snacks"), safety(models.SafetySafe))
	}
	env.store.Flush()
	elapsed := time.Since(start)

	t.Logf("Recorded 150 scans in %v (avg: %v per scan)", elapsed, elapsed/150)

	// History stays bounded no matter how many scans come in.
	if got := len(env.store.History()); got != 100 {
		t.Errorf("Expected history capped at 100, got %d", got)
	}

	// Every scan still landed in the product cache (within its own cap).
	count, err := env.cache.Count()
	if err != nil {
		t.Fatalf("Failed to count cached products: %v", err)
	}
	if count == 0 {
		t.Error("Expected cached products after scanning")
	}
	if count > 200 {
		t.Errorf("Expected cache bounded at 200, got %d", count)
	}

	if elapsed > 30*time.Second {
		t.Logf("WARNING: Scanning took %v, consider optimization", elapsed)
	}
}
