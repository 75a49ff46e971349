// Package ais implements a minimal ITU-R M.1371 encoder: a pure bit-writer,
// 6-bit payload armouring, and the two message types this emulator needs —
// Type 18 (Class-B position report) and Type 24 Part A (static data name).
package ais

import (
	"fmt"

	"github.com/relabs-tech/marine_sim/internal/nmea"
)

// BitWriter appends unsigned and signed (two's-complement) fields to a
// growing bit vector, MSB first, matching the field layouts ITU-R M.1371
// specifies for AIS messages.
type BitWriter struct {
	bits []bool
}

// NewBitWriter returns an empty bit writer.
func NewBitWriter() *BitWriter {
	return &BitWriter{}
}

// WriteUint appends the low n bits of v, most significant bit first.
func (w *BitWriter) WriteUint(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bits = append(w.bits, (v>>uint(i))&1 == 1)
	}
}

// WriteInt appends v as an n-bit two's-complement field.
func (w *BitWriter) WriteInt(v int64, n int) {
	mask := uint64(1)<<uint(n) - 1
	w.WriteUint(uint64(v)&mask, n)
}

// WriteSixBitChar appends one AIS 6-bit ASCII character for c (as used by
// Type 24A name/callsign text fields — distinct from payload armouring).
func (w *BitWriter) WriteSixBitChar(c byte) {
	w.WriteUint(uint64(sixBitFromASCII(c)), 6)
}

// Len returns the number of bits written so far.
func (w *BitWriter) Len() int { return len(w.bits) }

// Bits returns the raw bit vector.
func (w *BitWriter) Bits() []bool { return w.bits }

// sixBitFromASCII implements the ITU-R M.1371 6-bit ASCII table used inside
// text fields: '@'..'_' (64..95) maps to 0..31, ' '..'?' (32..63) maps to
// itself, lowercase is folded to uppercase, anything else becomes '@' (0).
func sixBitFromASCII(c byte) byte {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch {
	case c >= 64 && c <= 95:
		return c - 64
	case c >= 32 && c <= 63:
		return c
	default:
		return 0
	}
}

// Armor maps a bit vector to the ITU "payload armouring" alphabet: every
// group of 6 bits becomes one character, 0-39 -> '0'..'W', 40-63 -> '`'..'w'.
// The vector is padded with zero bits to a multiple of 6; fillBits reports
// how many padding bits were added (0-5).
func Armor(bits []bool) (payload string, fillBits int) {
	fillBits = (6 - len(bits)%6) % 6
	padded := make([]bool, len(bits)+fillBits)
	copy(padded, bits)

	out := make([]byte, len(padded)/6)
	for i := range out {
		var v byte
		for b := 0; b < 6; b++ {
			v = v<<1 | boolBit(padded[i*6+b])
		}
		out[i] = armorChar(v)
	}
	return string(out), fillBits
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func armorChar(v byte) byte {
	if v <= 39 {
		return '0' + v
	}
	return '`' + (v - 40)
}

func dearmorChar(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= 'W':
		return c - '0', nil
	case c >= '`' && c <= 'w':
		return c - '`' + 40, nil
	default:
		return 0, fmt.Errorf("ais: invalid armoured character %q", c)
	}
}

// Dearmor is the inverse of Armor: it expands an armoured payload back into
// its bit vector, dropping the trailing fillBits padding bits.
func Dearmor(payload string, fillBits int) ([]bool, error) {
	bits := make([]bool, 0, len(payload)*6)
	for i := 0; i < len(payload); i++ {
		v, err := dearmorChar(payload[i])
		if err != nil {
			return nil, err
		}
		for b := 5; b >= 0; b-- {
			bits = append(bits, (v>>uint(b))&1 == 1)
		}
	}
	if fillBits > len(bits) {
		return nil, fmt.Errorf("ais: fillBits %d exceeds payload length %d", fillBits, len(bits))
	}
	return bits[:len(bits)-fillBits], nil
}

// BitReader reads fields back out of a decoded bit vector, in the same
// order BitWriter wrote them; used by the round-trip tests.
type BitReader struct {
	bits []bool
	pos  int
}

// NewBitReader wraps a bit vector for sequential reads.
func NewBitReader(bits []bool) *BitReader { return &BitReader{bits: bits} }

// ReadUint reads the next n bits as an unsigned integer.
func (r *BitReader) ReadUint(n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<1 | uint64(boolBit(r.bits[r.pos]))
		r.pos++
	}
	return v
}

// ReadInt reads the next n bits as a two's-complement signed integer.
func (r *BitReader) ReadInt(n int) int64 {
	v := r.ReadUint(n)
	sign := uint64(1) << uint(n-1)
	if v&sign != 0 {
		return int64(v) - int64(1<<uint(n))
	}
	return int64(v)
}

// Pose is the subset of an AIS contact's kinematic state Type 18 carries.
type Pose struct {
	MMSI       uint32
	LatDeg     float64
	LonDeg     float64
	SOGKn      float64
	COGDeg     float64
	HeadingDeg float64 // negative = unavailable
	TimestampS int     // UTC second, 0-59; 60 = not available
}

const (
	sogUnavailable     = 1023
	cogUnavailable     = 3600
	headingUnavailable = 511
)

// EncodeType18 packs a Class-B position report (168 bits) per spec.
func EncodeType18(p Pose) []bool {
	w := NewBitWriter()
	w.WriteUint(18, 6)               // message type
	w.WriteUint(0, 2)                // repeat indicator
	w.WriteUint(uint64(p.MMSI), 30)  // MMSI
	w.WriteUint(0, 8)                // reserved
	w.WriteUint(sogField(p.SOGKn), 10)
	w.WriteUint(1, 1) // position accuracy
	w.WriteInt(lonField(p.LonDeg), 28)
	w.WriteInt(latField(p.LatDeg), 27)
	w.WriteUint(cogField(p.COGDeg), 12)
	w.WriteUint(headingField(p.HeadingDeg), 9)
	w.WriteUint(uint64(p.TimestampS), 6)
	w.WriteUint(0, 2) // reserved
	w.WriteUint(1, 1) // class B unit flag (CS)
	w.WriteUint(0, 6) // display/DSC/band/msg22/mode/raim bits
	w.WriteUint(0, 20) // radio status
	return w.Bits()
}

func sogField(sogKn float64) uint64 {
	v := int64(sogKn*10 + 0.5)
	if v < 0 {
		v = 0
	}
	if v > sogUnavailable-1 {
		v = sogUnavailable - 1
	}
	return uint64(v)
}

func cogField(cogDeg float64) uint64 {
	v := int64(cogDeg*10 + 0.5)
	if v < 0 {
		v = 0
	}
	if v >= cogUnavailable {
		v = cogUnavailable - 1
	}
	return uint64(v)
}

func headingField(headingDeg float64) uint64 {
	if headingDeg < 0 {
		return headingUnavailable
	}
	v := int64(headingDeg + 0.5)
	if v < 0 {
		v = 0
	}
	if v > 359 {
		v = 359
	}
	return uint64(v)
}

func latField(latDeg float64) int64 {
	return int64(latDeg * 60 * 10000)
}

func lonField(lonDeg float64) int64 {
	return int64(lonDeg * 60 * 10000)
}

// DecodeType18 is the inverse of EncodeType18, used by round-trip tests.
func DecodeType18(bits []bool) Pose {
	r := NewBitReader(bits)
	r.ReadUint(6) // type
	r.ReadUint(2) // repeat
	mmsi := r.ReadUint(30)
	r.ReadUint(8) // reserved
	sog := r.ReadUint(10)
	r.ReadUint(1) // accuracy
	lon := r.ReadInt(28)
	lat := r.ReadInt(27)
	cog := r.ReadUint(12)
	heading := r.ReadUint(9)
	ts := r.ReadUint(6)

	p := Pose{
		MMSI:       uint32(mmsi),
		LatDeg:     float64(lat) / 600000.0,
		LonDeg:     float64(lon) / 600000.0,
		SOGKn:      float64(sog) / 10.0,
		COGDeg:     float64(cog) / 10.0,
		TimestampS: int(ts),
	}
	if heading == headingUnavailable {
		p.HeadingDeg = -1
	} else {
		p.HeadingDeg = float64(heading)
	}
	return p
}

// EncodeType24A packs a static-data Part A message (160 bits): type,
// repeat, MMSI, part number 0, and a 20-character (120-bit) name field
// padded with '@' (six-bit 0) and truncated to fit.
func EncodeType24A(mmsi uint32, name string) []bool {
	w := NewBitWriter()
	w.WriteUint(24, 6)
	w.WriteUint(0, 2)
	w.WriteUint(uint64(mmsi), 30)
	w.WriteUint(0, 2) // part number A
	padded := padOrTruncate(name, 20)
	for i := 0; i < 20; i++ {
		w.WriteSixBitChar(padded[i])
	}
	return w.Bits()
}

func padOrTruncate(s string, n int) string {
	b := []byte(s)
	if len(b) > n {
		return string(b[:n])
	}
	out := make([]byte, n)
	copy(out, b)
	for i := len(b); i < n; i++ {
		out[i] = '@'
	}
	return string(out)
}

// Frame wraps a bit vector into one or more "!AIVDM,...*HH\r\n" lines,
// splitting the armoured payload every 60 characters. Every message type
// this package produces fits comfortably in one fragment.
func Frame(bits []bool) []string {
	payload, fillBits := Armor(bits)

	const maxChars = 60
	var chunks []string
	for len(payload) > maxChars {
		chunks = append(chunks, payload[:maxChars])
		payload = payload[maxChars:]
	}
	chunks = append(chunks, payload)

	total := len(chunks)
	lines := make([]string, total)
	for i, chunk := range chunks {
		idx := i + 1
		fill := 0
		if idx == total {
			fill = fillBits
		}
		body := fmt.Sprintf("AIVDM,%d,%d,,A,%s,%d", total, idx, chunk, fill)
		lines[i] = "!" + body + fmt.Sprintf("*%02X\r\n", nmea.Checksum(body))
	}
	return lines
}
