// Package progress computes the derived metrics shown in the halaqah and
// student views. Every function is total: no input makes it fail.
package progress

import (
	"math"
	"time"

	"tahfeez/internal/model"
)

// DefaultPagesPerJuz is the page count of one juz in the school's mushaf.
const DefaultPagesPerJuz = 20

// AttendanceRate returns the unrounded percentage of present records among
// records with a definite flag. Unmarked records are ignored; with no
// definite records the rate is 0.
func AttendanceRate(records []model.AttendanceRecord) float64 {
	var present, definite int
	for _, r := range records {
		if !r.Flag.Definite() {
			continue
		}
		definite++
		if r.Flag == model.Present {
			present++
		}
	}
	if definite == 0 {
		return 0
	}
	return 100 * float64(present) / float64(definite)
}

// Percent rounds a stored percentage for display.
func Percent(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}

// JuzProgress returns the share of the current juz completed, clamped to
// [0, 100].
func JuzProgress(pagesCompleted, pagesPerJuz int) int {
	if pagesPerJuz <= 0 || pagesCompleted <= 0 {
		return 0
	}
	p := Percent(100 * float64(pagesCompleted) / float64(pagesPerJuz))
	if p > 100 {
		return 100
	}
	return p
}

// Age returns full years between birth and asOf, or nil when the birth date
// is unknown. The year is not counted until the birthday has passed.
func Age(birth *time.Time, asOf time.Time) *int {
	if birth == nil || birth.IsZero() {
		return nil
	}
	by, bm, bd := birth.Date()
	ay, am, ad := asOf.Date()
	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	return &age
}
