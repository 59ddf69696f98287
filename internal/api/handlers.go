package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacylights-live/internal/database/repositories"
	"github.com/bbernstein/lacylights-live/internal/fixture"
	"github.com/bbernstein/lacylights-live/internal/services/export"
	importservice "github.com/bbernstein/lacylights-live/internal/services/import"
	"github.com/bbernstein/lacylights-live/internal/state"
)

type errorResponse struct {
	Error string `json:"error"`
}

// DispatchResponse reports the outcome of a dispatched action. OK is false
// when a reducer reported a diagnostic; the state may still have changed.
type DispatchResponse struct {
	OK       bool     `json:"ok"`
	Warnings []string `json:"warnings"`
}

// DMXStatus describes the DMX output.
type DMXStatus struct {
	Enabled   bool   `json:"enabled"`
	Active    bool   `json:"active"`
	RateHz    int    `json:"rateHz"`
	Broadcast string `json:"broadcast"`
	Universes int    `json:"universes"`
}

type broadcastRequest struct {
	Address string `json:"address"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("cannot write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

// warnings flattens a diagnostic, which may join several errors.
func warnings(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, warnings(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.cfg.Version,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetState())
}

func (s *Server) handleGetSlice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "slice")
	value, ok := s.store.GetState().Get(state.Slice(name))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown slice %q", name)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body: %v", err)
		return
	}
	action, err := state.DecodeAction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	resp := DispatchResponse{OK: true, Warnings: []string{}}
	if !state.IsKnown(action.Kind()) {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("unrecognized action type %q", action.Kind()))
	}
	if err := s.store.Dispatch(action); err != nil {
		resp.OK = false
		resp.Warnings = append(resp.Warnings, warnings(err)...)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFixtureTypes(w http.ResponseWriter, r *http.Request) {
	types := s.catalog.Types()
	profiles := make([]fixture.Profile, 0, len(types))
	for _, t := range types {
		p, err := s.catalog.Lookup(t)
		if err != nil {
			continue
		}
		profiles = append(profiles, p)
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleAddFixtures(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body: %v", err)
		return
	}
	var req fixture.BulkRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid fixture request: %v", err)
		return
	}
	if req.Name == "" {
		req.Name = req.Type
	}

	fixtures, err := s.catalog.NewFixtures(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	for i, f := range fixtures {
		if err := s.store.Dispatch(state.AddFixture{Fixture: f}); err != nil {
			s.removeFixtures(fixtures[:i])
			writeError(w, http.StatusConflict, "%v", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, fixtures)
}

// removeFixtures undoes a partially applied bulk add, newest first.
func (s *Server) removeFixtures(added []state.Fixture) {
	for i := len(added) - 1; i >= 0; i-- {
		if err := s.store.Dispatch(state.RemoveFixture{FixtureID: added[i].ID}); err != nil {
			log.Printf("Warning: cannot roll back fixture %s: %v", added[i].ID, err)
		}
	}
}

func (s *Server) handleRemoveFixture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.store.GetState().Fixture(id); !ok {
		writeError(w, http.StatusNotFound, "fixture %q not found", id)
		return
	}
	if err := s.store.Dispatch(state.RemoveFixtureFromEverywhere{FixtureID: id}); err != nil {
		writeError(w, http.StatusNotFound, "%v", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	options, err := s.interfaces()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *Server) handleDMXStatus(w http.ResponseWriter, r *http.Request) {
	if s.dmx == nil {
		writeError(w, http.StatusServiceUnavailable, "DMX output not configured")
		return
	}
	writeJSON(w, http.StatusOK, DMXStatus{
		Enabled:   s.dmx.IsEnabled(),
		Active:    s.dmx.IsActive(),
		RateHz:    s.dmx.GetCurrentRate(),
		Broadcast: s.dmx.GetBroadcastAddress(),
		Universes: s.dmx.UniverseCount(),
	})
}

func (s *Server) handleSetBroadcast(w http.ResponseWriter, r *http.Request) {
	if s.dmx == nil {
		writeError(w, http.StatusServiceUnavailable, "DMX output not configured")
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body: %v", err)
		return
	}
	var req broadcastRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid broadcast request: %v", err)
		return
	}
	if ip := net.ParseIP(req.Address); ip == nil || ip.To4() == nil {
		writeError(w, http.StatusBadRequest, "invalid IPv4 address %q", req.Address)
		return
	}

	if err := s.dmx.ReloadBroadcastAddress(req.Address); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if s.settings != nil {
		if _, err := s.settings.Upsert(r.Context(), repositories.SettingArtNetBroadcast, req.Address); err != nil {
			log.Printf("Warning: failed to save broadcast address: %v", err)
		}
	}
	log.Printf("📡 Art-Net broadcast address set to %s", req.Address)
	s.handleDMXStatus(w, r)
}

// ImportResponse reports the outcome of a show import.
type ImportResponse struct {
	Stats    *importservice.ImportStats `json:"stats"`
	Warnings []string                   `json:"warnings"`
	Error    string                     `json:"error,omitempty"`
}

func (s *Server) handleExportShow(w http.ResponseWriter, r *http.Request) {
	exported, stats := export.ExportShow(s.store.GetState(), s.cfg.Version, export.AllOptions())
	if desc := r.URL.Query().Get("description"); desc != "" {
		exported.Metadata.Description = &desc
	}
	log.Printf("📤 Exported show: %d fixtures, %d scenes, %d animations", stats.FixturesCount, stats.ScenesCount, stats.AnimationsCount)

	w.Header().Set("Content-Disposition", `attachment; filename="show.json"`)
	writeJSON(w, http.StatusOK, exported)
}

func (s *Server) handleImportShow(w http.ResponseWriter, r *http.Request) {
	mode, err := importservice.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body: %v", err)
		return
	}

	stats, warns, err := s.importer.ImportShow(r.Context(), string(body), importservice.ImportOptions{
		Mode:                    mode,
		FixtureConflictStrategy: importservice.FixtureConflictStrategy(r.URL.Query().Get("fixtures")),
	})
	if warns == nil {
		warns = []string{}
	}
	if err != nil && stats == nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err != nil {
		// Records applied before the failure stay in the show
		log.Printf("⚠️  Show import stopped: %v", err)
		writeJSON(w, http.StatusConflict, ImportResponse{Stats: stats, Warnings: warns, Error: err.Error()})
		return
	}
	log.Printf("📥 Imported show (%s): %d fixtures, %d scenes, %d skipped", mode, stats.FixturesCreated, stats.ScenesCreated, stats.Skipped)
	writeJSON(w, http.StatusOK, ImportResponse{Stats: stats, Warnings: warns})
}
