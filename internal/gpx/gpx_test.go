package gpx

import (
	"strings"
	"testing"
	"time"
)

const timedGPX = `<?xml version="1.0"?>
<gpx><trk><trkseg>
<trkpt lat="42.0000" lon="-71.0000"><time>2025-01-01T00:00:00Z</time></trkpt>
<trkpt lat="42.1000" lon="-71.0000"><time>2025-01-01T00:01:40Z</time></trkpt>
<trkpt lat="42.2000" lon="-71.0000"><time>2025-01-01T00:03:20Z</time></trkpt>
</trkseg></trk></gpx>`

const untimedGPX = `<?xml version="1.0"?>
<gpx><trk><trkseg>
<trkpt lat="10.0" lon="10.0"/>
<trkpt lat="10.0" lon="10.1"/>
<trkpt lat="10.0" lon="10.2"/>
</trkseg></trk></gpx>`

func TestParseTimedTrack(t *testing.T) {
	tr, err := Parse(strings.NewReader(timedGPX))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !tr.HasTime {
		t.Fatal("expected HasTime = true")
	}
	if tr.Duration != 200*time.Second {
		t.Errorf("Duration = %v, want 200s", tr.Duration)
	}
}

func TestPositionAtOffsetExactPoints(t *testing.T) {
	tr, err := Parse(strings.NewReader(timedGPX))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for i, wantOffset := range []float64{0, 100, 200} {
		lat, lon := tr.PositionAtOffset(wantOffset)
		want := tr.Points[i]
		if diff(lat, want.Lat) > 1e-9 || diff(lon, want.Lon) > 1e-9 {
			t.Errorf("PositionAtOffset(%v) = (%v,%v), want (%v,%v)", wantOffset, lat, lon, want.Lat, want.Lon)
		}
	}
}

func TestPositionAtOffsetClamps(t *testing.T) {
	tr, _ := Parse(strings.NewReader(timedGPX))
	latLow, lonLow := tr.PositionAtOffset(-50)
	if diff(latLow, tr.Points[0].Lat) > 1e-9 || diff(lonLow, tr.Points[0].Lon) > 1e-9 {
		t.Errorf("negative offset not clamped to start")
	}
	latHigh, lonHigh := tr.PositionAtOffset(1000)
	last := tr.Points[len(tr.Points)-1]
	if diff(latHigh, last.Lat) > 1e-9 || diff(lonHigh, last.Lon) > 1e-9 {
		t.Errorf("overlarge offset not clamped to end")
	}
}

func TestParseUntimedTrack(t *testing.T) {
	tr, err := Parse(strings.NewReader(untimedGPX))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tr.HasTime {
		t.Fatal("expected HasTime = false")
	}
	lat, lon := tr.PositionAtFraction(0.5)
	if diff(lat, 10.0) > 1e-6 || diff(lon, 10.1) > 1e-6 {
		t.Errorf("PositionAtFraction(0.5) = (%v,%v), want (10.0,10.1)", lat, lon)
	}
}

func TestParseRejectsShortTrack(t *testing.T) {
	short := `<gpx><trk><trkseg><trkpt lat="1" lon="1"/></trkseg></trk></gpx>`
	if _, err := Parse(strings.NewReader(short)); err == nil {
		t.Fatal("expected error for a track with fewer than 2 points")
	}
}

func diff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d
}
