// Package api exposes the store over HTTP and WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/bbernstein/lacylights-live/internal/database/models"
	"github.com/bbernstein/lacylights-live/internal/fixture"
	importservice "github.com/bbernstein/lacylights-live/internal/services/import"
	"github.com/bbernstein/lacylights-live/internal/services/network"
	"github.com/bbernstein/lacylights-live/internal/store"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// DMXController is the part of the DMX service the API reports on and
// reconfigures.
type DMXController interface {
	IsEnabled() bool
	IsActive() bool
	GetCurrentRate() int
	GetBroadcastAddress() string
	UniverseCount() int
	ReloadBroadcastAddress(addr string) error
}

// SettingStore persists settings.
type SettingStore interface {
	Upsert(ctx context.Context, key, value string) (*models.Setting, error)
}

// Config configures the router.
type Config struct {
	CORSOrigin string
	Debug      bool
	Version    string
}

// Server handles API requests.
type Server struct {
	store    *store.Store
	catalog  *fixture.Catalog
	cfg      Config
	dmx      DMXController
	settings SettingStore
	importer *importservice.Service
	upgrader websocket.Upgrader

	interfaces func() ([]network.InterfaceOption, error)
	startedAt  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithDMX enables the DMX status and broadcast endpoints.
func WithDMX(d DMXController) Option {
	return func(s *Server) { s.dmx = d }
}

// WithSettings persists settings changed through the API.
func WithSettings(st SettingStore) Option {
	return func(s *Server) { s.settings = st }
}

// NewServer creates a Server.
func NewServer(st *store.Store, catalog *fixture.Catalog, cfg Config, opts ...Option) *Server {
	s := &Server{
		store:    st,
		catalog:  catalog,
		cfg:      cfg,
		importer: importservice.NewService(st),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		interfaces: network.GetNetworkInterfaces,
		startedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            s.cfg.Debug,
	})
	router.Use(corsMiddleware.Handler)

	router.Get("/health", s.handleHealth)

	// Streams are long lived and stay outside the request timeout
	router.Get("/ws", s.handleStateStream)
	router.Get("/ws/dmx", s.handleDMXStream)
	router.Get("/ws/midi", s.handleMIDIStream)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/state", s.handleGetState)
		r.Get("/state/{slice}", s.handleGetSlice)
		r.Post("/actions", s.handleDispatch)

		r.Get("/fixture-types", s.handleFixtureTypes)
		r.Post("/fixtures", s.handleAddFixtures)
		r.Delete("/fixtures/{id}", s.handleRemoveFixture)

		r.Get("/show/export", s.handleExportShow)
		r.Post("/show/import", s.handleImportShow)

		r.Get("/network/interfaces", s.handleInterfaces)
		r.Get("/dmx", s.handleDMXStatus)
		r.Post("/dmx/broadcast", s.handleSetBroadcast)
	})

	return router
}
