package vessel

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/marine_sim/internal/geo"
	"github.com/relabs-tech/marine_sim/internal/gpx"
)

// ContactConfig is the AIS fleet configuration block (spec "ais_*" fields).
type ContactConfig struct {
	NumTargets              int
	MaxCOGOffsetDeg         float64
	MaxSOGOffsetKn          float64
	DistributionRadiusNM    float64
}

// Contact is one simulated AIS target, identity-stable for the lifetime of
// a fleet epoch (i.e. until the next restart).
type Contact struct {
	MMSI uint32
	Name string

	bearingOffsetDeg float64
	rangeNM          float64
	sogOffsetKn      float64
	cogOffsetDeg     float64
	gpxTimeOffsetS   float64
	gpxFracOffset    float64

	Lat, Lon      float64
	SOGKn, COGDeg float64

	lastType24A time.Time
	everEmitted bool
}

// DueForType24A reports whether the contact should emit its static-data
// message at simTime: the first tick, or every ~60 simulated seconds.
func (c *Contact) DueForType24A(simTime time.Time) bool {
	if !c.everEmitted {
		return true
	}
	return simTime.Sub(c.lastType24A) >= 60*time.Second
}

// MarkType24AEmitted records that a Type-24A message went out at simTime.
func (c *Contact) MarkType24AEmitted(simTime time.Time) {
	c.lastType24A = simTime
	c.everEmitted = true
}

// Fleet is the set of simulated AIS contacts surrounding the own-ship.
type Fleet struct {
	Contacts []*Contact
}

// NewFleet constructs a fleet of cfg.NumTargets contacts, seeded
// deterministically from MMSI 999000001, with bindings drawn from rng. If
// track is non-nil the contacts are bound to GPX playback offsets instead
// of a bearing/range offset from the own-ship.
func NewFleet(cfg ContactConfig, rng *rand.Rand, track *gpx.Track, ownLat, ownLon float64) *Fleet {
	f := &Fleet{Contacts: make([]*Contact, 0, cfg.NumTargets)}
	for i := 0; i < cfg.NumTargets; i++ {
		mmsi := uint32(999000001 + i)
		c := &Contact{MMSI: mmsi, Name: syntheticName(mmsi)}

		switch {
		case track != nil && track.HasTime:
			sign := 1.0
			if rng.Intn(2) == 0 {
				sign = -1
			}
			c.gpxTimeOffsetS = sign * uniform(rng, 30, 300)
		case track != nil:
			n := len(track.Points)
			idxOffset := int(uniform(rng, -50, 50))
			if n > 1 {
				c.gpxFracOffset = float64(idxOffset) / float64(n-1)
			}
		default:
			c.bearingOffsetDeg = rng.Float64() * 360
			c.rangeNM = rng.Float64() * cfg.DistributionRadiusNM
			c.sogOffsetKn = uniform(rng, -cfg.MaxSOGOffsetKn, cfg.MaxSOGOffsetKn)
			c.cogOffsetDeg = uniform(rng, -cfg.MaxCOGOffsetDeg, cfg.MaxCOGOffsetDeg)
			c.Lat, c.Lon = geo.DeadReckon(ownLat, ownLon, c.bearingOffsetDeg, c.rangeNM)
		}
		f.Contacts = append(f.Contacts, c)
	}
	return f
}

// Step advances every contact by dt given the just-stepped own-ship state.
func (f *Fleet) Step(dt time.Duration, own *Ownship, track *gpx.Track) {
	for _, c := range f.Contacts {
		switch {
		case track != nil && track.HasTime:
			offset := own.GPXOffsetS() + c.gpxTimeOffsetS
			c.Lat, c.Lon = track.PositionAtOffset(offset)
			c.SOGKn, c.COGDeg = track.SegmentSOGCOG(offset)

		case track != nil:
			frac := own.GPXFraction() + c.gpxFracOffset
			if frac < 0 {
				frac = 0
			}
			if frac > 1 {
				frac = 1
			}
			c.Lat, c.Lon = track.PositionAtFraction(frac)
			c.COGDeg = track.CourseAtFraction(frac)
			c.SOGKn = own.SOGKn

		default:
			c.COGDeg = geo.NormalizeDeg(own.COGDeg + c.cogOffsetDeg)
			c.SOGKn = math.Max(0, own.SOGKn+c.sogOffsetKn)
			distNM := c.SOGKn * dt.Hours()
			c.Lat, c.Lon = geo.DeadReckon(c.Lat, c.Lon, c.COGDeg, distNM)
		}
	}
}

func syntheticName(mmsi uint32) string {
	return fmt.Sprintf("TARGET %d", mmsi-999000000)
}
