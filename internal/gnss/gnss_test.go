package gnss

import (
	"math"
	"math/rand"
	"testing"
)

func TestSampleCountsAndDOPConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var prev Snapshot
	for tick := 0; tick < 20; tick++ {
		snap := Sample(rng, prev)
		if len(snap.Satellites) < 8 || len(snap.Satellites) > 14 {
			t.Fatalf("tick %d: %d satellites, want 8..14", tick, len(snap.Satellites))
		}
		if len(snap.UsedPRNs) < 6 || len(snap.UsedPRNs) > 10 {
			t.Fatalf("tick %d: %d used PRNs, want 6..10", tick, len(snap.UsedPRNs))
		}
		if snap.HDOP < 0.6 || snap.HDOP > 2.5 {
			t.Fatalf("tick %d: HDOP %v out of [0.6,2.5]", tick, snap.HDOP)
		}
		want := math.Sqrt(snap.HDOP*snap.HDOP + snap.VDOP*snap.VDOP)
		if math.Abs(want-snap.PDOP) > 1e-9 {
			t.Fatalf("tick %d: PDOP %v inconsistent with HDOP/VDOP (want %v)", tick, snap.PDOP, want)
		}
		for _, sat := range snap.Satellites {
			if sat.Elevation < 5 || sat.Elevation > 85 {
				t.Errorf("tick %d: elevation %v out of [5,85]", tick, sat.Elevation)
			}
			if sat.Azimuth < 0 || sat.Azimuth >= 360 {
				t.Errorf("tick %d: azimuth %v out of [0,360)", tick, sat.Azimuth)
			}
		}
		prev = snap
	}
}

func TestSamplePRNsChurnSlowly(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := Sample(rng, Snapshot{})
	b := Sample(rng, a)
	overlap := 0
	aPRNs := map[int]bool{}
	for _, s := range a.Satellites {
		aPRNs[s.PRN] = true
	}
	for _, s := range b.Satellites {
		if aPRNs[s.PRN] {
			overlap++
		}
	}
	if overlap == 0 {
		t.Error("expected most PRNs to persist across one tick, got zero overlap")
	}
}
