// Package engine is the simulation core: the tick scheduler that owns the
// own-ship, the AIS fleet, the GNSS snapshot, the stream ring and the
// publisher, under one short-lived mutex. It does not import net/http or
// any other HTTP library — the control plane talks to it only through this
// package's exported methods.
package engine

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/relabs-tech/marine_sim/internal/ais"
	"github.com/relabs-tech/marine_sim/internal/gnss"
	"github.com/relabs-tech/marine_sim/internal/gpx"
	"github.com/relabs-tech/marine_sim/internal/nmea"
	"github.com/relabs-tech/marine_sim/internal/publish"
	"github.com/relabs-tech/marine_sim/internal/ring"
	"github.com/relabs-tech/marine_sim/internal/vessel"
)

// State is the engine's lifecycle state.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Lifecycle misuse errors, surfaced non-fatally to the caller.
var (
	ErrAlreadyRunning = errors.New("engine: already running")
	ErrNotRunning     = errors.New("engine: not running")
)

// Config is the validated configuration record the engine consumes
// atomically on Start/Restart. The control plane is responsible for
// parsing text/JSON configuration and any GPX upload into this shape.
type Config struct {
	UDPHost string
	UDPPort int
	TCPHost string
	TCPPort int // 0 disables TCP

	IntervalS   float64
	StartTime   time.Time
	Seed        int64

	Lat, Lon, SOGKn, COGDeg, MagvarDeg float64

	WindEnabled bool
	TWSKn       float64
	TWDDeg      float64

	HeadingEnabled bool

	DepthEnabled     bool
	DepthM           float64
	DepthOffsetM     float64
	WaterTempEnabled bool
	WaterTempC       float64
	BatteryEnabled   bool
	BatteryV         float64
	AirTempEnabled   bool
	AirTempC         float64
	TanksEnabled     bool
	TankFreshWater   float64
	TankFuel         float64
	TankWaste        float64

	AIS vessel.ContactConfig

	GPXTrack         *gpx.Track
	GPXOffsetS       *float64
	GPXStartFraction *float64
}

// Validate reports ConfigInvalid conditions the engine must reject before
// any state change.
func (c Config) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: lat %v out of range", ErrConfigInvalid, c.Lat)
	}
	if c.IntervalS <= 0 {
		return fmt.Errorf("%w: interval_s must be > 0, got %v", ErrConfigInvalid, c.IntervalS)
	}
	if c.GPXOffsetS != nil && c.GPXStartFraction != nil {
		return fmt.Errorf("%w: gpx_offset_s and gpx_start_fraction are mutually exclusive", ErrConfigInvalid)
	}
	if c.GPXTrack != nil {
		if c.GPXTrack.HasTime && c.GPXStartFraction != nil {
			return fmt.Errorf("%w: gpx_start_fraction given for a timed track", ErrConfigInvalid)
		}
		if !c.GPXTrack.HasTime && c.GPXOffsetS != nil {
			return fmt.Errorf("%w: gpx_offset_s given for an untimed track", ErrConfigInvalid)
		}
	}
	if c.AIS.NumTargets < 0 {
		return fmt.Errorf("%w: ais_num_targets must be >= 0", ErrConfigInvalid)
	}
	return nil
}

// ErrConfigInvalid wraps every Validate failure.
var ErrConfigInvalid = errors.New("engine: invalid configuration")

// ErrSocketBindFailed wraps UDP/TCP socket setup failures from Start.
var ErrSocketBindFailed = errors.New("engine: socket bind failed")

// Status is the immutable snapshot returned by Status().
type Status struct {
	State          string
	StartedAt      time.Time
	SimTime        time.Time
	UDPEndpoint    string
	TCPEndpoint    string
	TCPEnabled     bool
	TCPClients     []publish.ClientInfo
	StreamSize     int
	TicksServed    uint64
	DriftEvents    uint64
	Lat, Lon       float64
	SOGKn, COGDeg  float64
	AISContacts    int
	GPXTrackLoaded bool
	GPXProgress    float64 // 0..1, only meaningful when a track is loaded
}

// Engine is the single owning actor for all mutable simulation state. All
// access from other goroutines (control plane, tests) goes through its
// methods, which take the mutex only long enough to copy state in or out.
type Engine struct {
	mu    sync.Mutex
	state State

	cfg       Config
	own       *vessel.Ownship
	fleet     *vessel.Fleet
	gnssSnap  gnss.Snapshot
	rng       *rand.Rand
	stream    *ring.Ring
	udp       *publish.UDPSender
	tcp       *publish.TCPServer
	startedAt time.Time

	ticks uint64
	drift uint64

	stopCh chan struct{}
	doneCh chan struct{}

	onLine func(line string) // optional hook (telemetry mirror); nil-safe
}

// New returns an idle engine with a stream ring of the given capacity
// (spec default ~200).
func New(streamCapacity int) *Engine {
	return &Engine{state: Idle, stream: ring.NewRing(streamCapacity)}
}

// SetLineHook installs a callback invoked with every emitted line, in
// addition to UDP/TCP publication — used to wire an optional MQTT mirror
// without the engine importing telemetry concerns directly.
func (e *Engine) SetLineHook(f func(line string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLine = f
}

// Start validates cfg, allocates sockets, constructs initial simulation
// state and starts the tick goroutine. It fails with ErrAlreadyRunning if
// the engine is not Idle, with ErrConfigInvalid if cfg fails validation, or
// with ErrSocketBindFailed if the UDP/TCP sockets cannot be set up.
func (e *Engine) Start(cfg Config) (Status, error) {
	e.mu.Lock()
	if e.state != Idle {
		e.mu.Unlock()
		return Status{}, ErrAlreadyRunning
	}
	if err := cfg.Validate(); err != nil {
		e.mu.Unlock()
		return Status{}, err
	}
	e.state = Starting
	e.mu.Unlock()

	udp, err := publish.NewUDPSender(cfg.UDPHost, cfg.UDPPort)
	if err != nil {
		e.mu.Lock()
		e.state = Idle
		e.mu.Unlock()
		return Status{}, fmt.Errorf("%w: %v", ErrSocketBindFailed, err)
	}

	var tcp *publish.TCPServer
	if cfg.TCPPort > 0 {
		tcp, err = publish.NewTCPServer(cfg.TCPHost, cfg.TCPPort, 1024)
		if err != nil {
			udp.Close()
			e.mu.Lock()
			e.state = Idle
			e.mu.Unlock()
			return Status{}, fmt.Errorf("%w: %v", ErrSocketBindFailed, err)
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	startTime := cfg.StartTime
	if startTime.IsZero() {
		startTime = time.Now().UTC()
	}

	gpxOffsetS, gpxFraction := 0.0, 0.0
	if cfg.GPXOffsetS != nil {
		gpxOffsetS = *cfg.GPXOffsetS
	}
	if cfg.GPXStartFraction != nil {
		gpxFraction = *cfg.GPXStartFraction
	}

	own := vessel.NewOwnship(cfg.Lat, cfg.Lon, cfg.SOGKn, cfg.COGDeg, cfg.MagvarDeg,
		cfg.TWSKn, cfg.TWDDeg, cfg.DepthM, cfg.DepthOffsetM, cfg.WaterTempC,
		cfg.AirTempC, cfg.BatteryV, cfg.TankFreshWater, cfg.TankFuel, cfg.TankWaste,
		startTime, gpxOffsetS, gpxFraction)

	fleet := vessel.NewFleet(cfg.AIS, rng, cfg.GPXTrack, cfg.Lat, cfg.Lon)

	e.mu.Lock()
	e.cfg = cfg
	e.own = own
	e.fleet = fleet
	e.rng = rng
	e.gnssSnap = gnss.Snapshot{}
	e.udp = udp
	e.tcp = tcp
	e.startedAt = time.Now()
	e.ticks = 0
	e.drift = 0
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.state = Running
	e.mu.Unlock()

	go e.run()

	return e.Status(), nil
}

// Stop signals the scheduler to stop, waits up to timeout for the current
// tick to finish and sockets to close, and force-closes sockets if the
// timeout elapses. Returns ErrNotRunning if the engine is Idle.
func (e *Engine) Stop(timeout time.Duration) (Status, error) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return Status{}, ErrNotRunning
	}
	e.state = Stopping
	stopCh := e.stopCh
	doneCh := e.doneCh
	e.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(timeout):
		log.Printf("engine: stop timeout exceeded, force-closing sockets")
	}

	e.mu.Lock()
	if e.udp != nil {
		e.udp.Close()
		e.udp = nil
	}
	if e.tcp != nil {
		e.tcp.Close()
		e.tcp = nil
	}
	e.state = Idle
	status := e.statusLocked()
	e.mu.Unlock()

	return status, nil
}

// Restart is Stop followed by Start with the new configuration, atomic
// from the caller's perspective and idempotent against rapid repeats.
func (e *Engine) Restart(cfg Config) (Status, error) {
	e.mu.Lock()
	running := e.state == Running
	e.mu.Unlock()

	if running {
		if _, err := e.Stop(2 * time.Second); err != nil && !errors.Is(err, ErrNotRunning) {
			return Status{}, err
		}
	}
	return e.Start(cfg)
}

// Status returns an immutable snapshot of the engine's current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	s := Status{
		State:      e.state.String(),
		StartedAt:  e.startedAt,
		StreamSize: e.stream.Len(),
		TicksServed: e.ticks,
		DriftEvents: e.drift,
	}
	if e.own != nil {
		s.SimTime = e.own.SimTime
		s.Lat, s.Lon = e.own.Lat, e.own.Lon
		s.SOGKn, s.COGDeg = e.own.SOGKn, e.own.COGDeg
	}
	if e.fleet != nil {
		s.AISContacts = len(e.fleet.Contacts)
	}
	if e.cfg.GPXTrack != nil {
		s.GPXTrackLoaded = true
		if e.cfg.GPXTrack.HasTime && e.cfg.GPXTrack.Duration > 0 {
			s.GPXProgress = e.own.GPXOffsetS() / e.cfg.GPXTrack.Duration.Seconds()
		} else {
			s.GPXProgress = e.own.GPXFraction()
		}
	}
	s.UDPEndpoint = fmt.Sprintf("%s:%d", e.cfg.UDPHost, e.cfg.UDPPort)
	if e.cfg.TCPPort > 0 {
		s.TCPEnabled = true
		s.TCPEndpoint = fmt.Sprintf("%s:%d", e.cfg.TCPHost, e.cfg.TCPPort)
	}
	if e.tcp != nil {
		s.TCPClients = e.tcp.Snapshot()
	}
	return s
}

// Stream returns the last limit emitted lines (or all of them, if limit <=
// 0 or exceeds the ring size).
func (e *Engine) Stream(limit int) []string {
	return e.stream.Last(limit)
}

// run is the tick goroutine: it wakes on t0 + k*interval, skipping ahead
// (never bursting) on drift, advances the models, renders the sentence
// batch, publishes it, and appends every line to the stream ring.
func (e *Engine) run() {
	defer close(e.doneCh)

	e.mu.Lock()
	interval := time.Duration(e.cfg.IntervalS * float64(time.Second))
	stopCh := e.stopCh
	e.mu.Unlock()

	t0 := time.Now()
	var k int64 = 1
	var lastTicked int64 = 0

	for {
		target := t0.Add(time.Duration(k) * interval)
		sleep := time.Until(target)

		if sleep < 0 {
			missed := -sleep
			if missed > interval {
				log.Printf("engine: scheduler drift of %v, skipping ahead", missed)
				e.mu.Lock()
				e.drift++
				e.mu.Unlock()
				k = int64(time.Since(t0)/interval) + 1
				continue
			}
		} else {
			timer := time.NewTimer(sleep)
			select {
			case <-timer.C:
			case <-stopCh:
				timer.Stop()
				return
			}
		}

		select {
		case <-stopCh:
			return
		default:
		}

		// dt covers every interval since the last tick, including any
		// skipped silently above, so the simulated clock never lags
		// wall-time by the dropped span even though only one batch of
		// sentences is rendered for the whole gap.
		dt := time.Duration(k-lastTicked) * interval
		e.tick(dt)
		lastTicked = k
		k++
	}
}

// tick advances the models and publishes exactly one batch of sentences,
// in the order the spec fixes: position group, wind/heading group, sensor
// group, then AIS.
func (e *Engine) tick(dt time.Duration) {
	e.mu.Lock()
	e.own.Step(dt, e.rng, e.cfg.GPXTrack)
	e.fleet.Step(dt, e.own, e.cfg.GPXTrack)
	e.gnssSnap = gnss.Sample(e.rng, e.gnssSnap)

	own := *e.own
	fleetCopy := make([]vessel.Contact, len(e.fleet.Contacts))
	for i, c := range e.fleet.Contacts {
		fleetCopy[i] = *c
	}
	cfg := e.cfg
	snap := e.gnssSnap
	e.ticks++
	e.mu.Unlock()

	lines := e.renderBatch(own, fleetCopy, cfg, snap)

	e.mu.Lock()
	udp := e.udp
	tcp := e.tcp
	hook := e.onLine
	e.mu.Unlock()

	for _, line := range lines {
		if udp != nil {
			if err := udp.Send(line); err != nil {
				log.Printf("engine: udp send failed: %v", err)
			}
		}
		if tcp != nil {
			tcp.Broadcast(line)
		}
		e.stream.Push(line)
		if hook != nil {
			hook(line)
		}
	}

	// Type-24A due-contact bookkeeping happens on the live fleet, not the
	// copy, since it is stateful across ticks.
	e.mu.Lock()
	for _, c := range e.fleet.Contacts {
		if c.DueForType24A(e.own.SimTime) {
			c.MarkType24AEmitted(e.own.SimTime)
		}
	}
	e.mu.Unlock()
}

func (e *Engine) renderBatch(own vessel.Ownship, fleet []vessel.Contact, cfg Config, snap gnss.Snapshot) []string {
	var lines []string

	usedCount := len(snap.UsedPRNs)
	lines = append(lines, nmea.RMC(own.SimTime, own.Lat, own.Lon, own.SOGKn, own.COGDeg, own.MagvarDeg))
	lines = append(lines, nmea.GGA(own.SimTime, own.Lat, own.Lon, usedCount, snap.HDOP, 0))
	lines = append(lines, nmea.VTG(own.COGDeg, own.MagneticCOG(), own.SOGKn))
	lines = append(lines, nmea.GSA(snap.UsedPRNs, snap.PDOP, snap.HDOP, snap.VDOP))
	lines = append(lines, nmea.GSV(snap.NMEASatellites())...)

	if cfg.HeadingEnabled {
		lines = append(lines, nmea.HDT(own.COGDeg))
	}
	if cfg.WindEnabled {
		magWD := func() float64 {
			w := own.TWDDeg - own.MagvarDeg
			for w < 0 {
				w += 360
			}
			for w >= 360 {
				w -= 360
			}
			return w
		}()
		lines = append(lines, nmea.MWD(own.TWDDeg, magWD, own.TWSKn))

		trueRel := own.TWDDeg - own.COGDeg
		for trueRel < 0 {
			trueRel += 360
		}
		for trueRel >= 360 {
			trueRel -= 360
		}
		lines = append(lines, nmea.MWV(trueRel, own.TWSKn, "T"))

		appAngle, appSpeed := nmea.ApparentWind(own.TWSKn, own.TWDDeg, own.SOGKn, own.COGDeg)
		lines = append(lines, nmea.MWV(appAngle, appSpeed, "R"))
	}
	if cfg.DepthEnabled {
		lines = append(lines, nmea.DPT(own.DepthM, own.DepthOffsetM))
		lines = append(lines, nmea.DBT(own.DepthM))
	}
	if cfg.WaterTempEnabled {
		lines = append(lines, nmea.MTW(own.WaterTempC))
	}
	if cfg.BatteryEnabled {
		lines = append(lines, nmea.XDR([]nmea.XDRTuple{{Type: "U", Value: own.BatteryV, Unit: "V", ID: "MAIN"}}))
	}
	if cfg.AirTempEnabled {
		lines = append(lines, nmea.XDR([]nmea.XDRTuple{{Type: "C", Value: own.AirTempC, Unit: "C", ID: "AIR"}}))
	}
	if cfg.TanksEnabled {
		lines = append(lines, nmea.XDR([]nmea.XDRTuple{
			{Type: "V", Value: own.TankFreshWater, Unit: "P", ID: "FRESHWATER"},
			{Type: "V", Value: own.TankFuel, Unit: "P", ID: "FUEL"},
			{Type: "V", Value: own.TankWaste, Unit: "P", ID: "WASTEWATER"},
		}))
	}

	for _, c := range fleet {
		pose := ais.Pose{
			MMSI: c.MMSI, LatDeg: c.Lat, LonDeg: c.Lon,
			SOGKn: c.SOGKn, COGDeg: c.COGDeg, HeadingDeg: -1,
			TimestampS: own.SimTime.Second(),
		}
		lines = append(lines, ais.Frame(ais.EncodeType18(pose))...)
	}
	for _, c := range fleet {
		if c.DueForType24A(own.SimTime) {
			lines = append(lines, ais.Frame(ais.EncodeType24A(c.MMSI, c.Name))...)
		}
	}

	return lines
}
