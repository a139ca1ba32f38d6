package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalizer derives row identity and UTC instants from raw cell text.
// Appointment exports carry naive local timestamps, so every parse is
// interpreted in the single reference timezone the schedulers operate in.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer loads the reference timezone by IANA name.
func NewNormalizer(timezone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading reference timezone %q: %w", timezone, err)
	}
	return &Normalizer{loc: loc}, nil
}

// Location returns the reference timezone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// RowID computes the stable identity of an appointment row: the lowercase
// hex SHA-1 of the raw DNI, Fecha, Hora, Ubicación and Procedimiento cells
// joined with "|". Missing cells contribute empty strings, so re-uploads of
// the same export always produce the same identity.
func RowID(dni, fecha, hora, ubicacion, procedimiento string) string {
	payload := strings.Join([]string{dni, fecha, hora, ubicacion, procedimiento}, "|")
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// occurredAtLayouts are tried in order against "<fecha> <hora>". Day comes
// first in every date form, matching how the scheduling system prints dates.
var occurredAtLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2/1/2006",
	"2-1-2006",
	"2006-01-02",
}

// OccurredAt combines the Fecha and Hora cells into a UTC instant at
// microsecond precision. Unparseable or impossible combinations return nil;
// the row is still ingested, it just has no position on the timeline.
func (n *Normalizer) OccurredAt(fecha, hora string) *time.Time {
	combined := strings.TrimSpace(strings.TrimSpace(fecha) + " " + strings.TrimSpace(hora))
	if combined == "" {
		return nil
	}

	for _, layout := range occurredAtLayouts {
		local, err := time.ParseInLocation(layout, combined, n.loc)
		if err != nil {
			continue
		}
		// A DST gap makes ParseInLocation shift the wall clock to a time
		// that exists. Compare against a UTC parse, which never shifts, to
		// catch combinations that only look valid.
		wall, err := time.Parse(layout, combined)
		if err != nil || !sameWallClock(local, wall) {
			return nil
		}
		utc := local.UTC().Truncate(time.Microsecond)
		return &utc
	}
	return nil
}

func sameWallClock(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day() &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}

// NormalizeNumeric cleans a cell that spreadsheets tend to type as a float.
// Integral floats collapse to integer text ("42.0" becomes "42"), NaN and
// infinities become blanks, and anything non-numeric passes through as is.
func NormalizeNumeric(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return v
}
