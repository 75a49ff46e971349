// Package gpx parses GPX track documents into an immutable Track value and
// answers position/SOG/COG interpolation queries against it. Parsing is
// isolated from any I/O or HTTP concern: callers hand in a byte buffer and
// get back a plain value.
package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/relabs-tech/marine_sim/internal/geo"
)

// Point is one track point: position and an optional UTC timestamp.
type Point struct {
	Lat, Lon float64
	Time     time.Time // zero if the track has no time data
}

// Track is an immutable, parsed GPX track.
type Track struct {
	Points    []Point
	HasTime   bool
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	LengthNM  float64

	cumNM []float64 // cumulative arc-length up to point i
}

type gpxDoc struct {
	XMLName xml.Name  `xml:"gpx"`
	Tracks  []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
}

// Parse reads a GPX document and returns its first track's concatenated
// segment points as an immutable Track. It rejects tracks with fewer than
// two points.
func Parse(r io.Reader) (*Track, error) {
	var doc gpxDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("gpx: parse: %w", err)
	}
	if len(doc.Tracks) == 0 {
		return nil, fmt.Errorf("gpx: document has no <trk> elements")
	}

	var raw []gpxPoint
	for _, seg := range doc.Tracks[0].Segments {
		raw = append(raw, seg.Points...)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("gpx: track has %d points, need at least 2", len(raw))
	}

	points := make([]Point, len(raw))
	hasTime := true
	for i, rp := range raw {
		points[i] = Point{Lat: rp.Lat, Lon: rp.Lon}
		if rp.Time == "" {
			hasTime = false
			continue
		}
		t, err := time.Parse(time.RFC3339, rp.Time)
		if err != nil {
			hasTime = false
			continue
		}
		points[i].Time = t
	}
	if !hasTime {
		for i := range points {
			points[i].Time = time.Time{}
		}
	}

	t := &Track{Points: points, HasTime: hasTime}
	t.cumNM = make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		d := geo.GreatCircleDistanceNM(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
		t.cumNM[i] = t.cumNM[i-1] + d
	}
	t.LengthNM = t.cumNM[len(t.cumNM)-1]

	if hasTime {
		t.StartTime = points[0].Time
		t.EndTime = points[len(points)-1].Time
		t.Duration = t.EndTime.Sub(t.StartTime)
	}
	return t, nil
}

// PositionAtOffset returns the interpolated position at offsetS seconds
// after StartTime, for timed tracks. offsetS is clamped to [0, Duration].
func (t *Track) PositionAtOffset(offsetS float64) (lat, lon float64) {
	if !t.HasTime {
		return t.Points[0].Lat, t.Points[0].Lon
	}
	if offsetS < 0 {
		offsetS = 0
	}
	maxS := t.Duration.Seconds()
	if offsetS > maxS {
		offsetS = maxS
	}
	target := t.StartTime.Add(time.Duration(offsetS * float64(time.Second)))

	idx := sort.Search(len(t.Points), func(i int) bool {
		return !t.Points[i].Time.Before(target)
	})
	if idx == 0 {
		return t.Points[0].Lat, t.Points[0].Lon
	}
	if idx >= len(t.Points) {
		last := t.Points[len(t.Points)-1]
		return last.Lat, last.Lon
	}
	a, b := t.Points[idx-1], t.Points[idx]
	span := b.Time.Sub(a.Time).Seconds()
	if span <= 0 {
		return a.Lat, a.Lon
	}
	f := target.Sub(a.Time).Seconds() / span
	return lerp(a.Lat, b.Lat, f), lerp(a.Lon, b.Lon, f)
}

// PositionAtFraction returns the interpolated position at cumulative
// arc-length fraction f ∈ [0, 1], for untimed tracks.
func (t *Track) PositionAtFraction(f float64) (lat, lon float64) {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	targetNM := f * t.LengthNM

	idx := sort.Search(len(t.cumNM), func(i int) bool {
		return t.cumNM[i] >= targetNM
	})
	if idx == 0 {
		return t.Points[0].Lat, t.Points[0].Lon
	}
	if idx >= len(t.Points) {
		last := t.Points[len(t.Points)-1]
		return last.Lat, last.Lon
	}
	a, b := t.Points[idx-1], t.Points[idx]
	span := t.cumNM[idx] - t.cumNM[idx-1]
	if span <= 0 {
		return a.Lat, a.Lon
	}
	frac := (targetNM - t.cumNM[idx-1]) / span
	return lerp(a.Lat, b.Lat, frac), lerp(a.Lon, b.Lon, frac)
}

// SegmentSOGCOG derives SOG (knots) and COG (degrees true) from the segment
// enclosing offsetS, for timed tracks: distance/duration of the segment
// yields SOG (clamped to 40 kn), initial bearing yields COG.
func (t *Track) SegmentSOGCOG(offsetS float64) (sogKn, cogDeg float64) {
	if !t.HasTime || len(t.Points) < 2 {
		return 0, 0
	}
	if offsetS < 0 {
		offsetS = 0
	}
	maxS := t.Duration.Seconds()
	if offsetS > maxS {
		offsetS = maxS
	}
	target := t.StartTime.Add(time.Duration(offsetS * float64(time.Second)))
	idx := sort.Search(len(t.Points), func(i int) bool {
		return !t.Points[i].Time.Before(target)
	})
	if idx == 0 {
		idx = 1
	}
	if idx >= len(t.Points) {
		idx = len(t.Points) - 1
	}
	a, b := t.Points[idx-1], t.Points[idx]
	dNM := geo.GreatCircleDistanceNM(a.Lat, a.Lon, b.Lat, b.Lon)
	dt := b.Time.Sub(a.Time).Hours()
	if dt <= 0 {
		return 0, geo.InitialBearing(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	sog := dNM / dt
	if sog > 40 {
		sog = 40
	}
	return sog, geo.InitialBearing(a.Lat, a.Lon, b.Lat, b.Lon)
}

// CourseAtFraction returns the bearing of the segment enclosing fraction f,
// used for untimed-track COG derivation.
func (t *Track) CourseAtFraction(f float64) float64 {
	if len(t.Points) < 2 {
		return 0
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	targetNM := f * t.LengthNM
	idx := sort.Search(len(t.cumNM), func(i int) bool {
		return t.cumNM[i] >= targetNM
	})
	if idx == 0 {
		idx = 1
	}
	if idx >= len(t.Points) {
		idx = len(t.Points) - 1
	}
	a, b := t.Points[idx-1], t.Points[idx]
	return geo.InitialBearing(a.Lat, a.Lon, b.Lat, b.Lon)
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }
