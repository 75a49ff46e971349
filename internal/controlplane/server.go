// Package controlplane is the only part of this repository allowed to
// import net/http: it exposes the engine's start/stop/restart/status/
// stream lifecycle as a small JSON API, plus a WebSocket endpoint that
// tails the live sentence stream. Nothing under internal/engine imports
// this package or net/http.
package controlplane

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/marine_sim/internal/config"
	"github.com/relabs-tech/marine_sim/internal/engine"
	"github.com/relabs-tech/marine_sim/internal/gpx"
	"github.com/relabs-tech/marine_sim/internal/vessel"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local tooling; no browser-origin restriction needed
	},
}

// Server wires an *engine.Engine to an http.ServeMux.
type Server struct {
	eng *engine.Engine
	mux *http.ServeMux
}

// NewServer builds a Server around eng with every route registered.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{eng: eng, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/start", s.handleStart)
	s.mux.HandleFunc("/api/stop", s.handleStop)
	s.mux.HandleFunc("/api/restart", s.handleRestart)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/stream", s.handleGetStream)
	s.mux.HandleFunc("/stream/ws", s.handleStreamWS)
	return s
}

// Handler returns the underlying http.Handler for use with http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.mux }

// startRequest is the JSON body accepted by /api/start and /api/restart. It
// mirrors config.Config's field names so a stored config file can be
// posted verbatim after JSON-encoding.
type startRequest = config.Config

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	cfg, err := buildEngineConfig(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	st, err := s.eng.Start(cfg)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	st, err := s.eng.Stop(5 * time.Second)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	cfg, err := buildEngineConfig(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	st, err := s.eng.Restart(cfg)
	if err != nil {
		writeEngineErr(w, err)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.eng.Status())
}

func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("n"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	writeJSON(w, s.eng.Stream(limit))
}

// handleStreamWS upgrades to a WebSocket and pushes every newly emitted
// line, polling the stream ring at a short fixed cadence rather than
// hooking the tick loop directly — keeps this package decoupled from the
// engine's internals beyond its exported methods.
func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("controlplane: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	seen := s.eng.Status().TicksServed
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		st := s.eng.Status()
		if st.TicksServed == seen {
			continue
		}
		seen = st.TicksServed
		lines := s.eng.Stream(64)
		if err := conn.WriteJSON(lines); err != nil {
			log.Printf("controlplane: websocket write error: %v", err)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("controlplane: JSON encode error: %v", err)
	}
}

func writeEngineErr(w http.ResponseWriter, err error) {
	switch err {
	case engine.ErrAlreadyRunning:
		http.Error(w, err.Error(), http.StatusConflict)
	case engine.ErrNotRunning:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// buildEngineConfig does the I/O config.Config itself cannot: loading and
// parsing an optional GPX track file into the engine's ready-to-run shape.
func buildEngineConfig(c *config.Config) (engine.Config, error) {
	var startTime time.Time
	if c.StartDatetime != "" {
		t, err := time.Parse(time.RFC3339, c.StartDatetime)
		if err != nil {
			return engine.Config{}, fmt.Errorf("invalid start_datetime: %w", err)
		}
		startTime = t
	}

	var track *gpx.Track
	if c.GPXTrackPath != "" {
		f, err := os.Open(c.GPXTrackPath)
		if err != nil {
			return engine.Config{}, fmt.Errorf("opening gpx track: %w", err)
		}
		defer f.Close()
		track, err = gpx.Parse(f)
		if err != nil {
			return engine.Config{}, fmt.Errorf("parsing gpx track: %w", err)
		}
	}

	return engine.Config{
		UDPHost: c.UDPHost, UDPPort: c.UDPPort,
		TCPHost: c.TCPHost, TCPPort: c.TCPPort,
		IntervalS: c.IntervalS,
		StartTime: startTime,
		Seed:      c.Seed,
		Lat:       c.Lat, Lon: c.Lon, SOGKn: c.SOGKn, COGDeg: c.COGDeg, MagvarDeg: c.MagvarDeg,
		WindEnabled:    c.WindEnabled,
		TWSKn:          c.TWSKn,
		TWDDeg:         c.TWDDeg,
		HeadingEnabled: c.HeadingEnabled,
		DepthEnabled:     c.DepthEnabled,
		DepthM:           c.DepthM,
		DepthOffsetM:     c.DepthOffsetM,
		WaterTempEnabled: c.WaterTempEnabled,
		WaterTempC:       c.WaterTempC,
		BatteryEnabled:   c.BatteryEnabled,
		BatteryV:         c.BatteryV,
		AirTempEnabled:   c.AirTempEnabled,
		AirTempC:         c.AirTempC,
		TanksEnabled:     c.TanksEnabled,
		TankFreshWater:   c.TankFreshWater,
		TankFuel:         c.TankFuel,
		TankWaste:        c.TankWaste,
		AIS: vessel.ContactConfig{
			NumTargets:           c.AISNumTargets,
			MaxCOGOffsetDeg:      c.AISMaxCOGOffsetDeg,
			MaxSOGOffsetKn:       c.AISMaxSOGOffsetKn,
			DistributionRadiusNM: c.AISDistributionRadiusNM,
		},
		GPXTrack:         track,
		GPXOffsetS:       c.GPXOffsetS,
		GPXStartFraction: c.GPXStartFraction,
	}, nil
}
