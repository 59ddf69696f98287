// Package main is the entry point for the LacyLights Live server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lucsky/cuid"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the rtmidi driver

	"github.com/bbernstein/lacylights-live/internal/api"
	"github.com/bbernstein/lacylights-live/internal/config"
	"github.com/bbernstein/lacylights-live/internal/database"
	"github.com/bbernstein/lacylights-live/internal/database/repositories"
	"github.com/bbernstein/lacylights-live/internal/fixture"
	"github.com/bbernstein/lacylights-live/internal/services/animation"
	"github.com/bbernstein/lacylights-live/internal/services/dmx"
	midisvc "github.com/bbernstein/lacylights-live/internal/services/midi"
	"github.com/bbernstein/lacylights-live/internal/services/network"
	"github.com/bbernstein/lacylights-live/internal/services/snapshot"
	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	printBanner(cfg)

	db, err := database.Open(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = database.Close() }()
	log.Println("Database migrations complete")

	catalog, err := fixture.NewCatalog(cfg.FixtureProfilesPath)
	if err != nil {
		log.Fatalf("Failed to load fixture profiles: %v", err)
	}
	log.Printf("🔦 %d fixture types available", len(catalog.Types()))

	showRepo := repositories.NewShowRepository(db)
	settingRepo := repositories.NewSettingRepository(db)

	st := store.New(loadShow(context.Background(), showRepo))
	ensureUniverses(st, cfg.DMXUniverseCount)

	// DMX output
	broadcast := cfg.ArtNetBroadcast
	if broadcast == "" {
		saved, err := settingRepo.Value(context.Background(), repositories.SettingArtNetBroadcast)
		if err != nil {
			log.Printf("Warning: %v", err)
		} else if saved != "" {
			log.Printf("📡 Loading saved Art-Net broadcast address: %s", saved)
			broadcast = saved
		}
	}
	broadcast = network.ResolveBroadcast(broadcast)
	dmxService := dmx.NewService(dmx.Config{
		Enabled:          cfg.ArtNetEnabled,
		BroadcastAddr:    broadcast,
		Port:             cfg.ArtNetPort,
		UniverseCount:    cfg.DMXUniverseCount,
		RefreshRateHz:    cfg.DMXRefreshRate,
		IdleRateHz:       cfg.DMXIdleRate,
		HighRateDuration: cfg.DMXHighRateDuration,
	})
	dmxService.SetPublisher(st.PubSub())
	if err := dmxService.Initialize(); err != nil {
		log.Printf("Warning: DMX service initialization failed: %v", err)
		// Continue anyway - state keeps working without output
	}

	bridge := dmx.NewBridge(st, catalog, dmxService)
	bridge.Start()

	player := animation.NewPlayer(st, animation.Config{
		UpdateRateHz: cfg.AnimationUpdateRateHz,
		BeatsPerBar:  cfg.BeatsPerBar,
		Easing:       animation.DefaultEasing,
	})
	player.Start()

	midiController := midisvc.NewController(st)
	if cfg.MIDIEnabled {
		openMIDI(st, midiController, cfg.MIDIInputPort)
	}

	snapshots := snapshot.NewService(st, showRepo, cfg.SnapshotDebounce)
	snapshots.Start()

	server := api.NewServer(st, catalog, api.Config{
		CORSOrigin: cfg.CORSOrigin,
		Debug:      cfg.IsDevelopment(),
		Version:    Version,
	}, api.WithDMX(dmxService), api.WithSettings(settingRepo))

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		log.Printf("State stream: ws://localhost:%s/ws\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Cleanup services in reverse order
	midiController.Close()
	midi.CloseDriver()
	player.Stop()
	bridge.Stop()
	dmxService.Stop()
	snapshots.Stop()
	if err := snapshots.SaveNow(ctx); err != nil {
		log.Printf("Warning: final save failed: %v", err)
	}

	log.Println("Server stopped")
}

// loadShow restores the saved show, falling back to an empty one.
func loadShow(ctx context.Context, repo *repositories.ShowRepository) state.State {
	s, err := repo.Load(ctx)
	if err != nil {
		log.Printf("Warning: failed to load saved show: %v", err)
		return state.Initial()
	}
	log.Printf("📂 Loaded show: %d fixtures, %d scenes, %d animations", len(s.Fixtures), len(s.Scenes), len(s.Animations))
	return s
}

// ensureUniverses adds universes until the state holds count of them.
func ensureUniverses(st *store.Store, count int) {
	for i := len(st.GetState().Universes); i < count; i++ {
		if err := st.Dispatch(state.AddUniverse{Universe: state.NewUniverse(cuid.New())}); err != nil {
			log.Printf("Warning: failed to add universe %d: %v", i, err)
			return
		}
	}
}

// openMIDI listens to the configured input and enables MIDI handling.
func openMIDI(st *store.Store, c *midisvc.Controller, port string) {
	if _, err := c.Open(port); err != nil {
		log.Printf("Warning: MIDI input unavailable: %v", err)
		return
	}
	if err := st.Dispatch(state.EnableMIDI{Enabled: true}); err != nil {
		log.Printf("Warning: failed to enable MIDI: %v", err)
	}
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  LacyLights Live Server")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  Art-Net:     %v\n", cfg.ArtNetEnabled)
	fmt.Printf("  Universes:   %d\n", cfg.DMXUniverseCount)
	fmt.Printf("  MIDI:        %v\n", cfg.MIDIEnabled)
	fmt.Println("============================================")
}
