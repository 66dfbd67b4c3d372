// Package main runs the localhost bridge for desktop platforms.
// The desktop UI talks REST/WebSocket to this process on 127.0.0.1:8090.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/cmd/desktop/handlers"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/auth"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backup"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/config"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/crypto"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/db"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/export"
	exportscheduler "github.com/steven-d-pennington/restricted-diet-app-sub003/internal/export/scheduler"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/history"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/offline"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/services"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/storage"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/sync"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/telemetry"
)

// app holds the wired subsystems for one desktop process. Remote
// pieces (client, auth, services, sync) are nil when no backend is
// configured; the bridge then serves the local store only.
type app struct {
	cfg      config.Config
	database *db.DB
	repo     *db.Repository
	store    *history.Store
	cache    *offline.Cache
	client   *backend.Client
	authMgr  *auth.Manager
	profiles *services.ProfileService
	family   *services.FamilyService
	eats     *services.RestaurantService
	engine   *sync.Engine
	syncSch  *sync.Scheduler
	recorder *sync.Recorder
	exporter *export.Service
	expSch   *exportscheduler.Scheduler
	backups  *backup.Service
	hub      *WSHub
}

func buildApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.database = database

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		database.Close()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		database.Close()
		return nil, err
	}

	a.repo = db.NewRepository(database.DB)

	dataDir := filepath.Dir(cfg.Database.Path)

	a.cache = offline.NewCache(a.repo, nil)
	if images, err := offline.NewImageStore(filepath.Join(dataDir, "images")); err != nil {
		log.Printf("[Desktop] Image store unavailable: %v", err)
	} else {
		a.cache.EnableImages(images, offline.NewHTTPFetcher())
	}

	a.store = history.NewStore(storage.NewSQLiteStore(a.repo), "", &history.Config{
		MaxHistoryItems: cfg.History.MaxHistoryItems,
		MaxFavorites:    cfg.History.MaxFavorites,
		AutoSaveOffline: cfg.History.AutoSaveOffline,
	})
	a.store.SetCache(a.cache)

	a.exporter = export.NewService(a.repo, a.store, cfg.Export.Dir)
	a.backups = backup.NewService(a.repo)

	if cfg.Telemetry.Enabled {
		telemetry.Get().Enable()
	}

	// The store holds a single change callback: fan out to telemetry,
	// the outbox recorder when sync is on, and the WebSocket hub.
	a.store.OnChange(func(e history.ChangeEvent) {
		if e.Type == models.EventScanAdded {
			telemetry.Get().Record(telemetry.EventScanRecorded, map[string]interface{}{
				"count": 1,
			})
		}
		if a.recorder != nil {
			a.recorder.HandleChange(e)
		}
		if a.hub != nil {
			a.hub.BroadcastStoreChanged(e)
		}
	})

	if cfg.Backend.BaseURL == "" {
		log.Printf("[Desktop] No backend configured, running offline-only")
		return a, nil
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL:  cfg.Backend.BaseURL,
		APIKey:   cfg.Backend.APIKey,
		Timeout:  time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		CacheTTL: time.Duration(cfg.Backend.CacheTTLMinutes) * time.Minute,
	})
	if err != nil {
		database.Close()
		return nil, err
	}
	a.client = client

	a.authMgr = auth.NewManager(client, crypto.NewSecureStorage(dataDir))
	a.profiles = services.NewProfileService(client)
	a.family = services.NewFamilyService(client)
	a.eats = services.NewRestaurantService(client, a.store)
	a.exporter.SetProfileSource(a.profiles)

	if cfg.Sync.Enabled {
		outbox := sync.NewOutbox(a.repo)
		a.engine = sync.NewEngine(client, a.authMgr, outbox, a.store, &sync.Config{
			BatchSize: cfg.Sync.BatchSize,
		})
		a.syncSch = sync.NewScheduler(a.engine, &sync.SchedulerConfig{
			Interval: time.Duration(cfg.Sync.IntervalMinutes) * time.Minute,
			Enabled:  true,
		})

		a.recorder = sync.NewRecorder(a.store, outbox)
	}

	a.authMgr.OnChange(func(userID string) {
		a.store.SetUser(userID)
		if userID == "" {
			a.profiles.Clear()
			a.family.Clear()
		}
		if a.syncSch != nil && userID != "" {
			a.syncSch.TriggerNow()
		}
		if a.hub != nil {
			a.hub.BroadcastUserChanged(userID)
		}
	})

	return a, nil
}

// attachHub connects the WebSocket hub to the subsystems that push
// events through it.
func (a *app) attachHub(hub *WSHub) {
	a.hub = hub
	if a.engine != nil {
		a.engine.OnResult(func(res sync.Result) {
			if res.Err != nil {
				hub.BroadcastSyncFailed(string(errors.CodeOf(res.Err)), res.Err.Error())
				return
			}
			hub.BroadcastSyncCompleted(res.Pushed, res.Pulled, res.Duration)
		})
	}
}

// start brings up the background pieces after wiring is complete.
func (a *app) start(ctx context.Context) {
	a.store.Load()
	if a.authMgr != nil {
		a.authMgr.Init(ctx)
	}
	if a.syncSch != nil {
		a.syncSch.Start()
	}

	interval := exportscheduler.ExportInterval(a.cfg.Export.Schedule)
	if interval == "" {
		interval = exportscheduler.IntervalManual
	}
	a.expSch = exportscheduler.NewScheduler(a.exporter, a.repo, &exportscheduler.Config{
		Interval:       interval,
		RetentionCount: a.cfg.Export.MaxArchives,
	})
	if interval != exportscheduler.IntervalManual {
		if err := a.expSch.Start(ctx); err != nil {
			log.Printf("[Desktop] Export scheduler: %v", err)
		}
	}
}

// shutdown stops background work and flushes pending store writes.
func (a *app) shutdown() {
	if a.syncSch != nil {
		a.syncSch.Stop()
	}
	if a.expSch != nil {
		a.expSch.Stop()
	}
	a.store.Flush()
	a.cache.Close()
	if err := a.database.Close(); err != nil {
		log.Printf("[Desktop] Database close: %v", err)
	}
}

// newMux registers the REST routes and the WebSocket endpoint.
func newMux(a *app, hub *WSHub) *http.ServeMux {
	historyH := handlers.NewHistoryHandler(a.store)
	favoritesH := handlers.NewFavoritesHandler(a.store)
	productsH := handlers.NewProductsHandler(a.cache, a.client)
	exportH := handlers.NewExportHandler(a.exporter, a.repo, a.backups)
	exportH.SetBroadcaster(hub)
	syncH := handlers.NewSyncHandler(a.engine, a.syncSch)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"restricted-diet-desktop"}`))
	})

	// Scan history
	mux.HandleFunc("GET /api/v1/history", historyH.ListHistory)
	mux.HandleFunc("POST /api/v1/history", historyH.AddScan)
	mux.HandleFunc("DELETE /api/v1/history", historyH.ClearHistory)
	mux.HandleFunc("GET /api/v1/history/search", historyH.SearchHistory)
	mux.HandleFunc("GET /api/v1/history/recent-safe", historyH.RecentSafeProducts)
	mux.HandleFunc("GET /api/v1/history/stats", historyH.HistoryStats)
	mux.HandleFunc("GET /api/v1/history/{id}", historyH.GetHistoryItem)
	mux.HandleFunc("DELETE /api/v1/history/{id}", historyH.RemoveFromHistory)

	// Favorites
	mux.HandleFunc("GET /api/v1/favorites", favoritesH.ListFavorites)
	mux.HandleFunc("POST /api/v1/favorites", favoritesH.AddFavorite)
	mux.HandleFunc("DELETE /api/v1/favorites/{id}", favoritesH.RemoveFavorite)
	mux.HandleFunc("POST /api/v1/favorites/{id}/toggle", favoritesH.ToggleFavorite)

	// Offline product cache and barcode checks
	mux.HandleFunc("GET /api/v1/products/search", productsH.SearchProducts)
	mux.HandleFunc("GET /api/v1/products/barcode/{code}", productsH.GetProductByBarcode)
	mux.HandleFunc("GET /api/v1/products/{id}", productsH.GetProduct)
	mux.HandleFunc("POST /api/v1/barcode/validate", productsH.ValidateBarcode)

	// Export / import / backup
	mux.HandleFunc("POST /api/v1/export", exportH.Export)
	mux.HandleFunc("POST /api/v1/import", exportH.Import)
	mux.HandleFunc("GET /api/v1/export/archives", exportH.ListArchives)
	mux.HandleFunc("GET /api/v1/backup", exportH.GetBackupTarget)
	mux.HandleFunc("PUT /api/v1/backup", exportH.ConfigureBackup)
	mux.HandleFunc("DELETE /api/v1/backup", exportH.DisableBackup)
	mux.HandleFunc("POST /api/v1/backup/upload", exportH.UploadArchive)

	// Sync control (handlers answer 412 when sync is not configured)
	mux.HandleFunc("GET /api/v1/sync/status", syncH.Status)
	mux.HandleFunc("POST /api/v1/sync/now", syncH.TriggerSync)
	mux.HandleFunc("PUT /api/v1/sync/auto", syncH.SetAutoSync)

	// Remote-backed routes exist only when a backend is configured.
	if a.authMgr != nil {
		authH := handlers.NewAuthHandler(a.authMgr, a.profiles, a.family)
		mux.HandleFunc("POST /api/v1/auth/signin", authH.SignIn)
		mux.HandleFunc("POST /api/v1/auth/signup", authH.SignUp)
		mux.HandleFunc("POST /api/v1/auth/signout", authH.SignOut)
		mux.HandleFunc("POST /api/v1/auth/refresh", authH.RefreshSession)
		mux.HandleFunc("GET /api/v1/auth/session", authH.Session)
		mux.HandleFunc("GET /api/v1/profile", authH.GetProfile)
		mux.HandleFunc("PUT /api/v1/profile", authH.UpdateProfile)
		mux.HandleFunc("GET /api/v1/family", authH.Family)
	}
	if a.eats != nil {
		eatsH := handlers.NewRestaurantsHandler(a.eats)
		mux.HandleFunc("GET /api/v1/restaurants", eatsH.SearchRestaurants)
		mux.HandleFunc("GET /api/v1/restaurants/{id}/meals", eatsH.RestaurantMeals)
	}

	mux.HandleFunc("/ws", HandleWebSocket(hub))

	return mux
}

func main() {
	configPath := flag.String("config", os.Getenv("DIET_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Desktop] Config: %v", err)
	}

	logging.Init(os.Stderr, logging.ParseLevel(cfg.Logging.Level))

	a, err := buildApp(cfg)
	if err != nil {
		log.Fatalf("[Desktop] Startup: %v", err)
	}

	hub := NewWSHub()
	a.attachHub(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.start(ctx)

	server := &http.Server{
		Addr:         cfg.Desktop.ListenAddr,
		Handler:      newMux(a, hub),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("[Desktop] Listening on %s", cfg.Desktop.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Desktop] Server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Printf("[Desktop] Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Desktop] Server shutdown: %v", err)
	}
	a.shutdown()
}
