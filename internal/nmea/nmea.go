// Package nmea renders NMEA 0183 ASCII sentences from numeric inputs. Every
// function here is pure: given the same arguments it produces the same
// line, terminator and checksum included.
package nmea

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/relabs-tech/marine_sim/internal/geo"
)

// Checksum XORs every byte of s, which must not include the leading '$'/'!'
// or the trailing '*' and checksum digits.
func Checksum(s string) byte {
	var c byte
	for i := 0; i < len(s); i++ {
		c ^= s[i]
	}
	return c
}

// sentence assembles "$<talker><id>,<fields>" into a terminated, checksummed
// line. lead is "$" for conventional talker sentences and "!" for AIS.
func sentence(lead, body string) string {
	sum := Checksum(body)
	return fmt.Sprintf("%s%s*%02X\r\n", lead, body, sum)
}

// FormatLatitude renders lat as NMEA "DDMM.mmmm,H".
func FormatLatitude(lat float64) (field, hemi string) {
	hemi = "N"
	if lat < 0 {
		hemi = "S"
	}
	a := math.Abs(lat)
	deg := int(a)
	min := (a - float64(deg)) * 60
	return fmt.Sprintf("%02d%07.4f", deg, min), hemi
}

// FormatLongitude renders lon as NMEA "DDDMM.mmmm,H".
func FormatLongitude(lon float64) (field, hemi string) {
	hemi = "E"
	if lon < 0 {
		hemi = "W"
	}
	a := math.Abs(lon)
	deg := int(a)
	min := (a - float64(deg)) * 60
	return fmt.Sprintf("%03d%07.4f", deg, min), hemi
}

// FormatTime renders t as NMEA "HHMMSS.ss" (UTC).
func FormatTime(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%02d%02d%02d.%02d", u.Hour(), u.Minute(), u.Second(), u.Nanosecond()/1e7)
}

// FormatDate renders t as NMEA "DDMMYY" (UTC), the GPRMC date field.
func FormatDate(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%02d%02d%02d", u.Day(), int(u.Month()), u.Year()%100)
}

func formatVariation(magvarDeg float64) (mag, dir string) {
	dir = "E"
	v := magvarDeg
	if v < 0 {
		dir = "W"
		v = -v
	}
	return fmt.Sprintf("%.1f", v), dir
}

// Satellite is the per-satellite payload used by GPGSA/GPGSV.
type Satellite struct {
	PRN       int
	Elevation float64
	Azimuth   float64
	SNR       float64
	Used      bool
}

// RMC renders a GPRMC sentence.
func RMC(t time.Time, lat, lon, sogKn, cogDeg, magvarDeg float64) string {
	latF, latH := FormatLatitude(lat)
	lonF, lonH := FormatLongitude(lon)
	magF, magD := formatVariation(magvarDeg)
	body := fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,%s,%s,A",
		FormatTime(t), latF, latH, lonF, lonH, sogKn, cogDeg, FormatDate(t), magF, magD)
	return sentence("$", body)
}

// GGA renders a GPGGA sentence.
func GGA(t time.Time, lat, lon float64, satsUsed int, hdop, altitudeM float64) string {
	latF, latH := FormatLatitude(lat)
	lonF, lonH := FormatLongitude(lon)
	body := fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,%02d,%.1f,%.1f,M,0.0,M,,",
		FormatTime(t), latF, latH, lonF, lonH, satsUsed, hdop, altitudeM)
	return sentence("$", body)
}

// VTG renders a GPVTG sentence. cogMagDeg is COG true minus magnetic
// variation, already normalised by the caller.
func VTG(cogTrueDeg, cogMagDeg, sogKn float64) string {
	body := fmt.Sprintf("GPVTG,%.1f,T,%.1f,M,%.1f,N,%.1f,K,A",
		cogTrueDeg, cogMagDeg, sogKn, geo.KnotsToKMH(sogKn))
	return sentence("$", body)
}

// GSA renders a GPGSA sentence from up to 12 used satellites.
func GSA(used []int, pdop, hdop, vdop float64) string {
	ids := make([]string, 12)
	for i := range ids {
		if i < len(used) && i < 12 {
			ids[i] = fmt.Sprintf("%02d", used[i])
		} else {
			ids[i] = ""
		}
	}
	body := fmt.Sprintf("GPGSA,A,3,%s,%.1f,%.1f,%.1f", strings.Join(ids, ","), pdop, hdop, vdop)
	return sentence("$", body)
}

// GSV renders the multi-sentence GPGSV group for the given satellites, up
// to 4 per sentence.
func GSV(sats []Satellite) []string {
	total := len(sats)
	numSentences := (total + 3) / 4
	if numSentences == 0 {
		numSentences = 1
	}
	out := make([]string, 0, numSentences)
	for n := 1; n <= numSentences; n++ {
		start := (n - 1) * 4
		end := start + 4
		if end > total {
			end = total
		}
		body := fmt.Sprintf("GPGSV,%d,%d,%02d", numSentences, n, total)
		for i := start; i < end; i++ {
			s := sats[i]
			body += fmt.Sprintf(",%02d,%02.0f,%03.0f,%02.0f", s.PRN, s.Elevation, s.Azimuth, s.SNR)
		}
		for i := 0; i < 4-(end-start); i++ {
			body += ",,,,"
		}
		out = append(out, sentence("$", body))
	}
	return out
}

// MWD renders a WIMWD true-wind sentence.
func MWD(twdDeg, magWdDeg, twsKn float64) string {
	body := fmt.Sprintf("WIMWD,%.1f,T,%.1f,M,%.1f,N,%.1f,M",
		twdDeg, magWdDeg, twsKn, geo.KnotsToMS(twsKn))
	return sentence("$", body)
}

// MWV renders a WIMWV sentence. reference is "R" (relative/apparent) or
// "T" (theoretical/true).
func MWV(angleDeg, speedKn float64, reference string) string {
	body := fmt.Sprintf("WIMWV,%.1f,%s,%.1f,N,A", angleDeg, reference, speedKn)
	return sentence("$", body)
}

// HDT renders an HCHDT true-heading sentence.
func HDT(headingDeg float64) string {
	body := fmt.Sprintf("HCHDT,%.1f,T", headingDeg)
	return sentence("$", body)
}

// DPT renders an SDDPT depth sentence.
func DPT(depthM, offsetM float64) string {
	body := fmt.Sprintf("SDDPT,%.1f,%.1f", depthM, offsetM)
	return sentence("$", body)
}

// DBT renders an SDDBT depth-below-transducer sentence in feet, meters and
// fathoms.
func DBT(depthM float64) string {
	body := fmt.Sprintf("SDDBT,%.1f,f,%.1f,M,%.1f,F",
		geo.MetersToFeet(depthM), depthM, geo.MetersToFathoms(depthM))
	return sentence("$", body)
}

// MTW renders a WIMTW water-temperature sentence.
func MTW(tempC float64) string {
	body := fmt.Sprintf("WIMTW,%.1f,C", tempC)
	return sentence("$", body)
}

// XDRTuple is one (type, value, unit, id) transducer tuple.
type XDRTuple struct {
	Type  string
	Value float64
	Unit  string
	ID    string
}

// XDR renders an IIXDR transducer sentence from one or more tuples.
func XDR(tuples []XDRTuple) string {
	var b strings.Builder
	b.WriteString("IIXDR")
	for _, t := range tuples {
		fmt.Fprintf(&b, ",%s,%.2f,%s,%s", t.Type, t.Value, t.Unit, t.ID)
	}
	return sentence("$", b.String())
}

// ApparentWind derives apparent wind angle (relative to the bow, signed
// -180..180 then normalised to 0..360) and speed from true wind speed/
// direction and own motion, via vector addition of true wind and the
// negative of vessel velocity.
func ApparentWind(twsKn, twdDeg, sogKn, cogDeg float64) (angleDeg, speedKn float64) {
	twRad := (twdDeg) * math.Pi / 180
	cogRad := cogDeg * math.Pi / 180

	// Wind vector (direction wind blows FROM, so velocity is reversed).
	windX := -twsKn * math.Sin(twRad)
	windY := -twsKn * math.Cos(twRad)

	// Vessel velocity vector.
	vesselX := sogKn * math.Sin(cogRad)
	vesselY := sogKn * math.Cos(cogRad)

	apparentX := windX - vesselX
	apparentY := windY - vesselY

	speedKn = math.Hypot(apparentX, apparentY)
	// Direction the apparent wind comes FROM, relative to true north.
	fromDeg := math.Atan2(-apparentX, -apparentY) * 180 / math.Pi
	relative := fromDeg - cogDeg
	// Normalise to (-180, 180] then to [0, 360) for MWV's relative field.
	for relative <= -180 {
		relative += 360
	}
	for relative > 180 {
		relative -= 360
	}
	angleDeg = relative
	if angleDeg < 0 {
		angleDeg += 360
	}
	return angleDeg, speedKn
}
