package report

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/redsalud/turnos-board/internal/domain"
)

// FilterableColumns are the store columns the dashboard can filter on.
var FilterableColumns = []string{
	"tipo_turno", "cobertura", "ubicacion", "efector",
	"procedimiento", "localidad", "estado", "atendido",
}

// Filters holds categorical in-filters keyed by store column name. An
// empty value list means the column is unconstrained.
type Filters map[string][]string

// FiltersFromQuery builds Filters from request query values, accepting
// repeated parameters per column and ignoring anything not filterable.
func FiltersFromQuery(q url.Values) Filters {
	f := Filters{}
	for _, col := range FilterableColumns {
		if vals, ok := q[col]; ok && len(vals) > 0 {
			f[col] = vals
		}
	}
	return f
}

// Apply keeps the rows matching every filter.
func (f Filters) Apply(rows []domain.Turno) []domain.Turno {
	if len(f) == 0 {
		return rows
	}
	out := make([]domain.Turno, 0, len(rows))
	for _, row := range rows {
		if f.matches(row) {
			out = append(out, row)
		}
	}
	return out
}

func (f Filters) matches(row domain.Turno) bool {
	for col, vals := range f {
		if len(vals) == 0 {
			continue
		}
		cell := row.Field(col)
		found := false
		for _, v := range vals {
			if cell == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CacheKey is a stable representation of the filter set for cache keys.
func (f Filters) CacheKey() string {
	parts := make([]string, 0, len(f))
	for _, col := range FilterableColumns {
		vals, ok := f[col]
		if !ok {
			continue
		}
		sorted := append([]string{}, vals...)
		sort.Strings(sorted)
		parts = append(parts, col+"="+fmt.Sprint(sorted))
	}
	return fmt.Sprint(parts)
}

// Summary are the headline dashboard numbers for a filtered range.
type Summary struct {
	Total          int      `json:"total"`
	UniquePatients int      `json:"unique_patients"`
	ActiveSites    int      `json:"active_sites"`
	AverageAge     *float64 `json:"average_age"`
}

// Summarize computes the headline numbers. AverageAge is nil when no row
// carries a numeric age.
func Summarize(rows []domain.Turno) Summary {
	patients := make(map[string]struct{})
	sites := make(map[string]struct{})
	var ageSum float64
	var ageCount int

	for _, row := range rows {
		if row.DNI != "" {
			patients[row.DNI] = struct{}{}
		}
		if row.Ubicacion != "" {
			sites[row.Ubicacion] = struct{}{}
		}
		if age, err := strconv.ParseFloat(row.Edad, 64); err == nil {
			ageSum += age
			ageCount++
		}
	}

	s := Summary{
		Total:          len(rows),
		UniquePatients: len(patients),
		ActiveSites:    len(sites),
	}
	if ageCount > 0 {
		avg := ageSum / float64(ageCount)
		s.AverageAge = &avg
	}
	return s
}

// SeriesPoint is one bucket of an appointment-count time series.
type SeriesPoint struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// Series buckets rows by their instant at the given frequency ("day",
// "week" or "month"), evaluated in the reference timezone. Rows without an
// instant are excluded. Output is sorted by period.
func Series(rows []domain.Turno, freq string, loc *time.Location) ([]SeriesPoint, error) {
	key, err := periodKey(freq)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if row.FechaHora == nil {
			continue
		}
		counts[key(row.FechaHora.In(loc))]++
	}

	out := make([]SeriesPoint, 0, len(counts))
	for period, count := range counts {
		out = append(out, SeriesPoint{Period: period, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func periodKey(freq string) (func(time.Time) string, error) {
	switch freq {
	case "day":
		return func(t time.Time) string { return t.Format("2006-01-02") }, nil
	case "week":
		return func(t time.Time) string {
			year, week := t.ISOWeek()
			return fmt.Sprintf("%d-W%02d", year, week)
		}, nil
	case "month":
		return func(t time.Time) string { return t.Format("2006-01") }, nil
	default:
		return nil, fmt.Errorf("unknown series frequency %q", freq)
	}
}

// WeekdayLabels index Monday first, matching how local staff read rosters.
var WeekdayLabels = []string{"Lun", "Mar", "Mié", "Jue", "Vie", "Sáb", "Dom"}

// Heatmap is a weekday-by-hour demand matrix. Counts[d][h] is the number
// of appointments on weekday d (Monday first) at hour h in the reference
// timezone.
type Heatmap struct {
	Days   []string `json:"days"`
	Counts [][]int  `json:"counts"`
}

// DemandHeatmap aggregates appointment demand by weekday and hour. Rows
// without an instant are excluded.
func DemandHeatmap(rows []domain.Turno, loc *time.Location) Heatmap {
	counts := make([][]int, len(WeekdayLabels))
	for i := range counts {
		counts[i] = make([]int, 24)
	}

	for _, row := range rows {
		if row.FechaHora == nil {
			continue
		}
		local := row.FechaHora.In(loc)
		day := (int(local.Weekday()) + 6) % 7 // Sunday 0 becomes Monday 0
		counts[day][local.Hour()]++
	}

	return Heatmap{Days: WeekdayLabels, Counts: counts}
}

// ValueCount is one bar of a top-values ranking.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// TopValues ranks the most frequent values of a filterable column, blanks
// excluded. Ties break alphabetically so the ranking is stable.
func TopValues(rows []domain.Turno, column string, n int) ([]ValueCount, error) {
	valid := false
	for _, c := range FilterableColumns {
		if c == column {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("column %q is not rankable", column)
	}
	if n <= 0 {
		n = 15
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if v := row.Field(column); v != "" {
			counts[v]++
		}
	}

	out := make([]ValueCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, ValueCount{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// PivotRow is one period of the period-by-site breakdown.
type PivotRow struct {
	Period string         `json:"period"`
	Total  int            `json:"total"`
	BySite map[string]int `json:"by_site"`
}

// PeriodPivot breaks appointment counts down by period and site. Rows
// without an instant are excluded; rows without a site count toward the
// period total only.
func PeriodPivot(rows []domain.Turno, freq string, loc *time.Location) ([]PivotRow, error) {
	key, err := periodKey(freq)
	if err != nil {
		return nil, err
	}

	byPeriod := make(map[string]*PivotRow)
	for _, row := range rows {
		if row.FechaHora == nil {
			continue
		}
		period := key(row.FechaHora.In(loc))
		pr, ok := byPeriod[period]
		if !ok {
			pr = &PivotRow{Period: period, BySite: make(map[string]int)}
			byPeriod[period] = pr
		}
		pr.Total++
		if row.Ubicacion != "" {
			pr.BySite[row.Ubicacion]++
		}
	}

	out := make([]PivotRow, 0, len(byPeriod))
	for _, pr := range byPeriod {
		out = append(out, *pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}
