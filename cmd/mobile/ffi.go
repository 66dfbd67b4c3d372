// Package main provides the FFI bridge for mobile platforms.
// Build as shared library: libdietcore.so (Android) / dietcore.framework (iOS)
package main

/*
#cgo CFLAGS: -Wall -Wextra
#cgo LDFLAGS: -shared
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/auth"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/config"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/crypto"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/db"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/history"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/offline"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/storage"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/telemetry"
)

// The bridge holds one core instance per process. Init wires it; every
// export checks it before touching the store.
var (
	once     sync.Once
	database *db.DB
	store    *history.Store
	cache    *offline.Cache
	authMgr  *auth.Manager
	lastErr  string
	lastMu   sync.RWMutex
)

//export Init
// Init initializes the diet scanner core. Configuration comes from the
// DIET_* environment the host app sets before loading the library.
func Init() {
	once.Do(func() {
		cfg, err := config.Load(os.Getenv("DIET_CONFIG"))
		if err != nil {
			setLastError(fmt.Sprintf("Failed to load config: %v", err))
			return
		}

		logging.Init(os.Stderr, logging.ParseLevel(cfg.Logging.Level))

		database, err = db.Open(cfg.Database.Path)
		if err != nil {
			setLastError(fmt.Sprintf("Failed to open database: %v", err))
			return
		}

		migrator := db.NewMigrator(database.DB)
		if err := migrator.Initialize(); err != nil {
			setLastError(fmt.Sprintf("Failed to initialize migrator: %v", err))
			return
		}
		if err := migrator.Up(); err != nil {
			setLastError(fmt.Sprintf("Failed to apply migrations: %v", err))
			return
		}

		repo := db.NewRepository(database.DB)
		dataDir := filepath.Dir(cfg.Database.Path)

		cache = offline.NewCache(repo, nil)
		if images, err := offline.NewImageStore(filepath.Join(dataDir, "images")); err == nil {
			cache.EnableImages(images, offline.NewHTTPFetcher())
		}

		store = history.NewStore(storage.NewSQLiteStore(repo), "", &history.Config{
			MaxHistoryItems: cfg.History.MaxHistoryItems,
			MaxFavorites:    cfg.History.MaxFavorites,
			AutoSaveOffline: cfg.History.AutoSaveOffline,
		})
		store.SetCache(cache)

		if cfg.Telemetry.Enabled {
			telemetry.Get().Enable()
		}
		store.OnChange(func(e history.ChangeEvent) {
			if e.Type == models.EventScanAdded {
				telemetry.Get().Record(telemetry.EventScanRecorded, map[string]interface{}{
					"count": 1,
				})
			}
		})
		store.Load()

		if cfg.Backend.BaseURL == "" {
			return
		}

		client, err := backend.NewClient(backend.Config{
			BaseURL:  cfg.Backend.BaseURL,
			APIKey:   cfg.Backend.APIKey,
			Timeout:  time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			CacheTTL: time.Duration(cfg.Backend.CacheTTLMinutes) * time.Minute,
		})
		if err != nil {
			setLastError(fmt.Sprintf("Failed to build backend client: %v", err))
			return
		}

		authMgr = auth.NewManager(client, crypto.NewSecureStorage(dataDir))
		authMgr.OnChange(func(userID string) {
			store.SetUser(userID)
		})
	})
}

//export Shutdown
// Shutdown flushes pending writes and releases resources.
func Shutdown() {
	if store != nil {
		store.Flush()
	}
	if cache != nil {
		cache.Close()
	}
	if database != nil {
		database.Close()
	}
}

//export GetLastError
// GetLastError returns the last error message, combining bridge-level
// failures with the store's own error state.
// Returns a C string that must be freed by the caller.
func GetLastError() *C.char {
	lastMu.RLock()
	msg := lastErr
	lastMu.RUnlock()

	if msg == "" && store != nil {
		msg = store.LastError()
	}
	return C.CString(msg)
}

//export ClearLastError
// ClearLastError resets both the bridge and store error state.
func ClearLastError() {
	lastMu.Lock()
	lastErr = ""
	lastMu.Unlock()

	if store != nil {
		store.ClearError()
	}
}

func setLastError(err string) {
	lastMu.Lock()
	defer lastMu.Unlock()
	lastErr = err
}

// =====================================================
// Identity Operations
// =====================================================

//export SetUser
// SetUser switches the active storage namespace and reloads both lists.
// Pass an empty string for the guest namespace.
func SetUser(userID *C.char) {
	if store == nil {
		setLastError("Core not initialized")
		return
	}
	store.SetUser(C.GoString(userID))
}

//export SignIn
// SignIn authenticates against the backend; the identity listener
// repoints the store. Returns 0 on success, non-zero on error.
func SignIn(email, password *C.char) int32 {
	if authMgr == nil {
		setLastError("No backend configured")
		return 1
	}

	ctx, cancel := callContext()
	defer cancel()

	if err := authMgr.SignIn(ctx, C.GoString(email), C.GoString(password)); err != nil {
		setLastError(fmt.Sprintf("Sign-in failed: %v", err))
		return 1
	}
	return 0
}

//export SignOut
// SignOut ends the session and returns the store to the guest
// namespace. Returns 0 on success, non-zero on error.
func SignOut() int32 {
	if authMgr == nil {
		setLastError("No backend configured")
		return 1
	}

	ctx, cancel := callContext()
	defer cancel()

	if err := authMgr.SignOut(ctx); err != nil {
		setLastError(fmt.Sprintf("Sign-out failed: %v", err))
		return 1
	}
	return 0
}

// =====================================================
// Memory Management Helpers
// =====================================================

//export FreeString
// FreeString frees a string allocated by Go.
func FreeString(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

func main() {
	// Main entry point for shared library
	// Not used when loaded as library
}
