// Package gnss synthesizes a plausible GNSS constellation snapshot —
// satellites in view with elevation/azimuth/SNR, the subset used in the
// fix, and mutually consistent dilution-of-precision figures.
package gnss

import (
	"math"
	"math/rand"

	"github.com/relabs-tech/marine_sim/internal/nmea"
)

// Satellite is one satellite in the synthesized constellation.
type Satellite struct {
	PRN       int
	Elevation float64
	Azimuth   float64
	SNR       float64
	Used      bool
}

// Snapshot is the per-tick GNSS state: every visible satellite, the ones
// used in the fix, and the derived DOP figures.
type Snapshot struct {
	Satellites []Satellite
	UsedPRNs   []int
	PDOP       float64
	HDOP       float64
	VDOP       float64
}

// Sample produces a new snapshot. When prev has satellites, their PRNs are
// reused (with slow azimuth/elevation/SNR churn) before any new PRNs are
// introduced, so the constellation looks stable from tick to tick.
func Sample(rng *rand.Rand, prev Snapshot) Snapshot {
	count := 8 + rng.Intn(7) // 8..14
	sats := make([]Satellite, 0, count)

	for i := 0; i < count && i < len(prev.Satellites); i++ {
		p := prev.Satellites[i]
		sats = append(sats, Satellite{
			PRN:       p.PRN,
			Elevation: clamp(p.Elevation+rng.Float64()*6-3, 5, 85),
			Azimuth:   wrap360(p.Azimuth + rng.Float64()*10 - 5),
			SNR:       clamp(p.SNR+rng.Float64()*4-2, 20, 48),
		})
	}
	nextPRN := 1
	used := map[int]bool{}
	for _, s := range sats {
		if s.PRN >= nextPRN {
			nextPRN = s.PRN + 1
		}
	}
	for len(sats) < count {
		sats = append(sats, Satellite{
			PRN:       nextPRN,
			Elevation: 5 + rng.Float64()*80,
			Azimuth:   rng.Float64() * 360,
			SNR:       20 + rng.Float64()*28,
		})
		nextPRN++
	}

	usedCount := 6 + rng.Intn(5) // 6..10
	if usedCount > len(sats) {
		usedCount = len(sats)
	}
	perm := rng.Perm(len(sats))
	usedPRNs := make([]int, 0, usedCount)
	for i := 0; i < usedCount; i++ {
		idx := perm[i]
		sats[idx].Used = true
		used[sats[idx].PRN] = true
		usedPRNs = append(usedPRNs, sats[idx].PRN)
	}

	hdop := 0.6 + rng.Float64()*1.9   // [0.6, 2.5]
	vdop := hdop * (0.9 + rng.Float64()*0.4)
	pdop := math.Sqrt(hdop*hdop + vdop*vdop)

	return Snapshot{Satellites: sats, UsedPRNs: usedPRNs, PDOP: pdop, HDOP: hdop, VDOP: vdop}
}

// NMEASatellites converts a snapshot's satellites into the codec's
// satellite value for GSV rendering.
func (s Snapshot) NMEASatellites() []nmea.Satellite {
	out := make([]nmea.Satellite, len(s.Satellites))
	for i, sat := range s.Satellites {
		out[i] = nmea.Satellite{PRN: sat.PRN, Elevation: sat.Elevation, Azimuth: sat.Azimuth, SNR: sat.SNR, Used: sat.Used}
	}
	return out
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

func wrap360(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	return v
}
