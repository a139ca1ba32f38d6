package ingest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/redsalud/turnos-board/internal/domain"
)

// Reconciler merges canonical appointment rows into the shared store.
type Reconciler interface {
	UpsertTurnos(ctx context.Context, records []domain.Turno) (int, error)
}

// UploadFile is one file handle from the upload surface.
type UploadFile struct {
	Name string
	Data []byte
}

// FileReport describes the outcome of a single file within an upload.
type FileReport struct {
	Name           string   `json:"name"`
	Rows           int      `json:"rows"`
	Skipped        bool     `json:"skipped"`
	Reason         string   `json:"reason,omitempty"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// Result is the outcome of one upload: per-file reports plus how many rows
// actually reached the store. When the reconciler fails mid-upload,
// Committed still reflects the batches that landed.
type Result struct {
	Committed int          `json:"committed"`
	Files     []FileReport `json:"files"`
}

// Pipeline drives an upload end to end: parse each file, validate its
// schema, canonicalize its rows, and reconcile everything into the store.
// A bad file never blocks the others; it is reported and skipped.
type Pipeline struct {
	normalizer *Normalizer
	store      Reconciler
	log        *zap.Logger
}

func NewPipeline(normalizer *Normalizer, store Reconciler, log *zap.Logger) *Pipeline {
	return &Pipeline{normalizer: normalizer, store: store, log: log}
}

// Ingest processes an upload on behalf of userID. The returned error comes
// from the reconciler; parse and schema failures are per-file outcomes in
// the Result, not errors.
func (p *Pipeline) Ingest(ctx context.Context, files []UploadFile, userID string) (*Result, error) {
	result := &Result{Files: make([]FileReport, 0, len(files))}
	var records []domain.Turno

	for _, f := range files {
		tbl, err := ReadAny(f.Name, f.Data)
		if err != nil {
			p.log.Warn("skipping unreadable upload file",
				zap.String("file", f.Name), zap.Error(err))
			result.Files = append(result.Files, FileReport{
				Name: f.Name, Skipped: true, Reason: err.Error(),
			})
			continue
		}

		if err := ValidateColumns(f.Name, tbl.Columns); err != nil {
			var missing *MissingColumnsError
			report := FileReport{Name: f.Name, Skipped: true, Reason: err.Error()}
			if errors.As(err, &missing) {
				report.MissingColumns = missing.Missing
			}
			p.log.Warn("skipping file with invalid schema",
				zap.String("file", f.Name), zap.Strings("missing", report.MissingColumns))
			result.Files = append(result.Files, report)
			continue
		}

		for _, row := range tbl.Rows {
			records = append(records, p.normalizer.Canonicalize(tbl, row, userID))
		}
		result.Files = append(result.Files, FileReport{Name: f.Name, Rows: len(tbl.Rows)})
	}

	records = dedupeLastWins(records)
	if len(records) == 0 {
		return result, nil
	}

	committed, err := p.store.UpsertTurnos(ctx, records)
	result.Committed = committed
	if err != nil {
		p.log.Error("upload partially committed",
			zap.Int("committed", committed), zap.Int("total", len(records)), zap.Error(err))
		return result, err
	}

	p.log.Info("upload reconciled",
		zap.Int("files", len(files)), zap.Int("rows", committed), zap.String("user_id", userID))
	return result, nil
}

// dedupeLastWins collapses rows sharing a row id within one upload, keeping
// the last occurrence. A multi-row upsert cannot touch the same key twice,
// and within a single upload the later row is the fresher export line.
func dedupeLastWins(records []domain.Turno) []domain.Turno {
	if len(records) == 0 {
		return records
	}
	out := records[:0]
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		if idx, ok := seen[rec.RowID]; ok {
			out[idx] = rec
			continue
		}
		seen[rec.RowID] = len(out)
		out = append(out, rec)
	}
	return out
}
