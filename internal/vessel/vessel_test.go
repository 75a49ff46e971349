package vessel

import (
	"math/rand"
	"testing"
	"time"

	"github.com/relabs-tech/marine_sim/internal/geo"
)

func TestStepManualKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	o := NewOwnship(89.9, 179.9, 39.9, 358, 0, 5, 10, 10, 0, 15, 20, 12.5, 50, 50, 0, time.Now(), 0, 0)
	for i := 0; i < 500; i++ {
		o.Step(time.Second, rng, nil)
		if o.Lat < -90 || o.Lat > 90 {
			t.Fatalf("tick %d: lat %v out of range", i, o.Lat)
		}
		if o.Lon <= -180 || o.Lon > 180 {
			t.Fatalf("tick %d: lon %v out of range", i, o.Lon)
		}
		if o.COGDeg < 0 || o.COGDeg >= 360 {
			t.Fatalf("tick %d: cog %v out of [0,360)", i, o.COGDeg)
		}
		if o.TWDDeg < 0 || o.TWDDeg >= 360 {
			t.Fatalf("tick %d: twd %v out of [0,360)", i, o.TWDDeg)
		}
		if o.SOGKn < 0 || o.SOGKn > 40 {
			t.Fatalf("tick %d: sog %v out of [0,40]", i, o.SOGKn)
		}
		for _, tank := range []float64{o.TankFreshWater, o.TankFuel, o.TankWaste} {
			if tank < 0 || tank > 100 {
				t.Fatalf("tick %d: tank %v out of [0,100]", i, tank)
			}
		}
	}
}

func TestSimClockAdvancesExactlyByInterval(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	o := NewOwnship(0, 0, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, start, 0, 0)
	rng := rand.New(rand.NewSource(1))
	for i := 1; i <= 60; i++ {
		o.Step(time.Second, rng, nil)
		want := start.Add(time.Duration(i) * time.Second)
		if !o.SimTime.Equal(want) {
			t.Fatalf("tick %d: SimTime = %v, want %v", i, o.SimTime, want)
		}
	}
}

func TestMagneticCOGNormalised(t *testing.T) {
	o := NewOwnship(0, 0, 0, 10, 30, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, time.Now(), 0, 0)
	got := o.MagneticCOG()
	want := geo.NormalizeDeg(10 - 30)
	if got != want {
		t.Errorf("MagneticCOG = %v, want %v", got, want)
	}
}

func TestFleetMMSISequence(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	f := NewFleet(ContactConfig{NumTargets: 3, MaxCOGOffsetDeg: 20, MaxSOGOffsetKn: 2, DistributionRadiusNM: 1}, rng, nil, 42, -71)
	want := []uint32{999000001, 999000002, 999000003}
	for i, c := range f.Contacts {
		if c.MMSI != want[i] {
			t.Errorf("contact %d MMSI = %d, want %d", i, c.MMSI, want[i])
		}
	}
}

func TestFleetStepTracksOwnCOG(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	f := NewFleet(ContactConfig{NumTargets: 1, MaxCOGOffsetDeg: 0, MaxSOGOffsetKn: 0, DistributionRadiusNM: 1}, rng, nil, 42, -71)
	own := NewOwnship(42, -71, 5, 90, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, time.Now(), 0, 0)
	f.Step(time.Second, own, nil)
	c := f.Contacts[0]
	if c.COGDeg != 90 {
		t.Errorf("contact COG = %v, want 90 (zero offset)", c.COGDeg)
	}
	if c.SOGKn != 5 {
		t.Errorf("contact SOG = %v, want 5 (zero offset)", c.SOGKn)
	}
}

func TestContactType24ADueOnFirstTickThenEvery60s(t *testing.T) {
	c := &Contact{MMSI: 999000001}
	t0 := time.Unix(0, 0)
	if !c.DueForType24A(t0) {
		t.Fatal("expected due on first tick")
	}
	c.MarkType24AEmitted(t0)
	if c.DueForType24A(t0.Add(30 * time.Second)) {
		t.Fatal("should not be due again after only 30s")
	}
	if !c.DueForType24A(t0.Add(61 * time.Second)) {
		t.Fatal("expected due again after 61s")
	}
}
