// Package vessel holds the stateful kinematic models: the own-ship and the
// AIS contact fleet bound to it. Both are advanced one tick at a time by
// the engine, which owns the only reference to either value.
package vessel

import (
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/marine_sim/internal/geo"
	"github.com/relabs-tech/marine_sim/internal/gpx"
)

// Ownship is the mutable state of the emulated vessel. Every field is a
// plain value; the engine is the only writer.
type Ownship struct {
	Lat, Lon       float64
	SOGKn, COGDeg  float64
	TWSKn, TWDDeg  float64
	MagvarDeg      float64
	DepthM         float64
	DepthOffsetM   float64
	WaterTempC     float64
	AirTempC       float64
	BatteryV       float64
	TankFreshWater float64
	TankFuel       float64
	TankWaste      float64
	SimTime        time.Time

	gpxOffsetS  float64
	gpxFraction float64
}

// GPXOffsetS returns the current GPX playback offset in seconds, for timed
// tracks.
func (o *Ownship) GPXOffsetS() float64 { return o.gpxOffsetS }

// GPXFraction returns the current GPX playback position as a fraction of
// total track length, for untimed tracks.
func (o *Ownship) GPXFraction() float64 { return o.gpxFraction }

// NewOwnship builds the initial own-ship state from a starting position and
// motion, at simTime.
func NewOwnship(lat, lon, sogKn, cogDeg, magvarDeg, twsKn, twdDeg,
	depthM, depthOffsetM, waterTempC, airTempC, batteryV,
	tankFreshWater, tankFuel, tankWaste float64, simTime time.Time,
	gpxOffsetS, gpxFraction float64) *Ownship {
	return &Ownship{
		Lat: geo.ClampLat(lat), Lon: geo.WrapLon(lon),
		SOGKn: sogKn, COGDeg: geo.NormalizeDeg(cogDeg),
		MagvarDeg: magvarDeg, TWSKn: twsKn, TWDDeg: geo.NormalizeDeg(twdDeg),
		DepthM: depthM, DepthOffsetM: depthOffsetM,
		WaterTempC: waterTempC, AirTempC: airTempC, BatteryV: batteryV,
		TankFreshWater: clamp(tankFreshWater, 0, 100),
		TankFuel:       clamp(tankFuel, 0, 100),
		TankWaste:      clamp(tankWaste, 0, 100),
		SimTime:        simTime,
		gpxOffsetS:     gpxOffsetS,
		gpxFraction:    gpxFraction,
	}
}

// MagneticCOG returns (COG - magvar) mod 360, the value GPVTG and WIMWD
// report as the magnetic course/direction.
func (o *Ownship) MagneticCOG() float64 {
	return geo.NormalizeDeg(o.COGDeg - o.MagvarDeg)
}

// Step advances the own-ship by dt, either by interpolating along track (if
// non-nil) or by a bounded manual random walk, advances the simulated clock,
// and perturbs every environmental sensor value (whether or not its sentence
// is enabled).
func (o *Ownship) Step(dt time.Duration, rng *rand.Rand, track *gpx.Track) {
	o.SimTime = o.SimTime.Add(dt)

	switch {
	case track != nil && track.HasTime:
		o.gpxOffsetS += dt.Seconds()
		if o.gpxOffsetS > track.Duration.Seconds() {
			o.gpxOffsetS = track.Duration.Seconds()
		}
		o.Lat, o.Lon = track.PositionAtOffset(o.gpxOffsetS)
		o.SOGKn, o.COGDeg = track.SegmentSOGCOG(o.gpxOffsetS)

	case track != nil:
		deltaNM := o.SOGKn * dt.Hours()
		if track.LengthNM > 0 {
			o.gpxFraction += deltaNM / track.LengthNM
		}
		if o.gpxFraction > 1 {
			o.gpxFraction = 1
		}
		o.Lat, o.Lon = track.PositionAtFraction(o.gpxFraction)
		o.COGDeg = track.CourseAtFraction(o.gpxFraction)

	default:
		o.SOGKn = clamp(o.SOGKn+uniform(rng, -0.2, 0.2), 0, 40)
		o.COGDeg = geo.NormalizeDeg(o.COGDeg + uniform(rng, -2, 2))
		o.TWSKn = math.Max(0, o.TWSKn+uniform(rng, -0.3, 0.3))
		o.TWDDeg = geo.NormalizeDeg(o.TWDDeg + uniform(rng, -3, 3))

		distNM := o.SOGKn * dt.Hours()
		o.Lat, o.Lon = geo.DeadReckon(o.Lat, o.Lon, o.COGDeg, distNM)
	}

	o.DepthM = clamp(o.DepthM+uniform(rng, -0.1, 0.1), 0, 300)
	o.WaterTempC = clamp(o.WaterTempC+uniform(rng, -0.05, 0.05), -2, 40)
	o.AirTempC = clamp(o.AirTempC+uniform(rng, -0.05, 0.05), -40, 55)
	o.BatteryV = clamp(o.BatteryV+uniform(rng, -0.01, 0.01), 0, 30)

	o.TankFreshWater = clamp(o.TankFreshWater-0.002*dt.Seconds(), 0, 100)
	o.TankFuel = clamp(o.TankFuel-0.001*dt.Seconds(), 0, 100)
	o.TankWaste = clamp(o.TankWaste+0.0015*dt.Seconds(), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
