package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/redsalud/turnos-board/internal/auth"
	"github.com/redsalud/turnos-board/internal/domain"
	"github.com/redsalud/turnos-board/internal/export"
	"github.com/redsalud/turnos-board/internal/ingest"
	"github.com/redsalud/turnos-board/internal/report"
)

// maxUploadBytes caps a whole multipart upload.
const maxUploadBytes = 256 << 20

// defaultRangeDays is how far back list and report endpoints look when the
// request carries no explicit range.
const defaultRangeDays = 90

// Ingestor runs an upload through the ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, files []ingest.UploadFile, userID string) (*ingest.Result, error)
}

// RangeReader reads appointments whose instant falls inside a range.
type RangeReader interface {
	FetchRange(ctx context.Context, from, to time.Time) ([]domain.Turno, error)
}

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	ingestor Ingestor
	store    RangeReader
	cache    *report.Cache
	loc      *time.Location
	log      *zap.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(ingestor Ingestor, store RangeReader, cache *report.Cache, loc *time.Location, log *zap.Logger) *Handlers {
	return &Handlers{ingestor: ingestor, store: store, cache: cache, loc: loc, log: log}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleUpload ingests one or more appointment exports. Only admins may
// upload; per-file problems are reported in the response, not as errors.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID := "dev"
	if session := auth.SessionFrom(r.Context()); session != nil {
		if !session.Profile.CanIngest() {
			writeError(w, http.StatusForbidden, "only admins can upload files")
			return
		}
		userID = session.Profile.UserID
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]ingest.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("cannot open %q", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("cannot read %q", fh.Filename))
			return
		}
		files = append(files, ingest.UploadFile{Name: fh.Filename, Data: data})
	}

	result, err := h.ingestor.Ingest(r.Context(), files, userID)
	if err != nil {
		resp := map[string]interface{}{"error": err.Error()}
		if result != nil {
			// Earlier batches are already committed; say how far we got.
			resp["committed"] = result.Committed
			resp["files"] = result.Files
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleListTurnos returns the filtered rows of a range.
func (h *Handlers) HandleListTurnos(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.fetchFiltered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rows),
		"rows":  rows,
	})
}

// HandleSummary returns the headline numbers for a filtered range.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filters := report.FiltersFromQuery(r.URL.Query())

	key := report.Key("summary", from.Format(time.RFC3339), to.Format(time.RFC3339), filters.CacheKey())
	var cached report.Summary
	if h.cache.Get(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	rows, err := h.store.FetchRange(r.Context(), from, to)
	if err != nil {
		h.serveStoreError(w, err)
		return
	}
	summary := report.Summarize(filters.Apply(rows))
	h.cache.Set(r.Context(), key, summary)
	writeJSON(w, http.StatusOK, summary)
}

// HandleSeries returns an appointment-count time series. The freq query
// parameter picks the bucket size: day, week or month.
func (h *Handlers) HandleSeries(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	freq := r.URL.Query().Get("freq")
	if freq == "" {
		freq = "day"
	}
	filters := report.FiltersFromQuery(r.URL.Query())

	key := report.Key("series", freq, from.Format(time.RFC3339), to.Format(time.RFC3339), filters.CacheKey())
	var cached []report.SeriesPoint
	if h.cache.Get(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	rows, err := h.store.FetchRange(r.Context(), from, to)
	if err != nil {
		h.serveStoreError(w, err)
		return
	}
	series, err := report.Series(filters.Apply(rows), freq, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.cache.Set(r.Context(), key, series)
	writeJSON(w, http.StatusOK, series)
}

// HandleHeatmap returns the weekday-by-hour demand matrix.
func (h *Handlers) HandleHeatmap(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.fetchFiltered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.DemandHeatmap(rows, h.loc))
}

// HandlePivot returns the period-by-site breakdown. The freq parameter
// picks the period: week or month (default month).
func (h *Handlers) HandlePivot(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	freq := r.URL.Query().Get("freq")
	if freq == "" {
		freq = "month"
	}
	filters := report.FiltersFromQuery(r.URL.Query())

	rows, err := h.store.FetchRange(r.Context(), from, to)
	if err != nil {
		h.serveStoreError(w, err)
		return
	}
	pivot, err := report.PeriodPivot(filters.Apply(rows), freq, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pivot)
}

// HandleTop returns the most frequent values of a filterable column. The
// column query parameter is required; n defaults to 15.
func (h *Handlers) HandleTop(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.fetchFiltered(w, r)
	if !ok {
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	top, err := report.TopValues(rows, r.URL.Query().Get("column"), n)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// HandleExport streams the filtered range as CSV or as an XLSX workbook.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.fetchFiltered(w, r)
	if !ok {
		return
	}

	var columns []string
	if raw := r.URL.Query().Get("columns"); raw != "" {
		columns = strings.Split(raw, ",")
	}
	stamp := time.Now().In(h.loc).Format("20060102")

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=turnos_%s.csv", stamp))
		if err := export.WriteCSV(w, rows, columns); err != nil {
			h.log.Error("csv export failed", zap.Error(err))
		}
	case "xlsx":
		data, err := export.BuildWorkbook(rows, columns)
		if err != nil {
			h.log.Error("workbook export failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=turnos_%s.xlsx", stamp))
		w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown export format %q", format))
	}
}

// fetchFiltered reads the requested range and applies the query filters.
// On failure it writes the error response and returns ok=false.
func (h *Handlers) fetchFiltered(w http.ResponseWriter, r *http.Request) ([]domain.Turno, bool) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	filters := report.FiltersFromQuery(r.URL.Query())

	rows, err := h.store.FetchRange(r.Context(), from, to)
	if err != nil {
		h.serveStoreError(w, err)
		return nil, false
	}
	return filters.Apply(rows), true
}

func (h *Handlers) serveStoreError(w http.ResponseWriter, err error) {
	h.log.Error("store read failed", zap.Error(err))
	writeError(w, http.StatusBadGateway, "store unavailable")
}

// parseTimeRange reads the from and to query parameters, accepting plain
// dates or RFC 3339 instants. Missing bounds default to the last
// defaultRangeDays days; a date-only "to" covers its whole day.
func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -defaultRangeDays)
	to := now

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		parsed, _, err := parseBound(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from %q", raw)
		}
		from = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, dateOnly, err := parseBound(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to %q", raw)
		}
		if dateOnly {
			parsed = parsed.Add(24*time.Hour - time.Microsecond)
		}
		to = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("range end precedes start")
	}
	return from, to, nil
}

func parseBound(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t.UTC(), false, err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
