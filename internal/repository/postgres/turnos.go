package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/redsalud/turnos-board/internal/domain"
)

const (
	DefaultBatchSize = 500
	DefaultPageSize  = 5000
	DefaultMaxPages  = 40
)

// TurnoRepo implements the batched reconciler and the range reader against
// PostgreSQL. Blank optional cells are stored as NULL and read back as "".
type TurnoRepo struct {
	db  *sql.DB
	log *zap.Logger

	// Tunables, exported so tests and config can shrink them.
	BatchSize int
	PageSize  int
	MaxPages  int
}

// NewTurnoRepo creates a Postgres-backed appointment repository with
// default batching and pagination.
func NewTurnoRepo(db *sql.DB, log *zap.Logger) *TurnoRepo {
	return &TurnoRepo{
		db:        db,
		log:       log,
		BatchSize: DefaultBatchSize,
		PageSize:  DefaultPageSize,
		MaxPages:  DefaultMaxPages,
	}
}

// UpsertBatchError reports a batch round trip that failed mid-upload.
// Batches before it are already committed and stay committed.
type UpsertBatchError struct {
	Committed int
	Batch     int
	Err       error
}

func (e *UpsertBatchError) Error() string {
	return fmt.Sprintf("upsert batch %d failed after %d rows committed: %v", e.Batch, e.Committed, e.Err)
}

func (e *UpsertBatchError) Unwrap() error { return e.Err }

// UpsertTurnos writes records in batches of at most BatchSize rows, each
// batch a single multi-row INSERT ... ON CONFLICT (row_id) DO UPDATE that
// fully replaces the conflicting row. Returns how many rows committed; on
// failure the error is an *UpsertBatchError carrying the same count.
func (r *TurnoRepo) UpsertTurnos(ctx context.Context, records []domain.Turno) (int, error) {
	committed := 0
	for start := 0; start < len(records); start += r.BatchSize {
		end := start + r.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := start/r.BatchSize + 1
		if err := r.upsertBatch(ctx, records[start:end]); err != nil {
			return committed, &UpsertBatchError{Committed: committed, Batch: batch, Err: err}
		}
		committed += end - start
	}
	return committed, nil
}

func (r *TurnoRepo) upsertBatch(ctx context.Context, records []domain.Turno) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO turnos (` + strings.Join(domain.StoreColumns, ", ") + `, created_at) VALUES `)

	cols := len(domain.StoreColumns)
	args := make([]interface{}, 0, len(records)*cols)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*cols+j+1)
		}
		sb.WriteString(", NOW())")

		args = append(args,
			rec.RowID,
			nullStr(rec.Fecha), nullStr(rec.Hora), nullStr(rec.TipoTurno),
			nullStr(rec.Paciente), nullStr(rec.DNI), nullStr(rec.Telefonos),
			nullStr(rec.Mail), nullStr(rec.Cobertura), nullStr(rec.Ubicacion),
			nullStr(rec.Efector), nullStr(rec.Procedimiento), nullStr(rec.Domicilio),
			nullStr(rec.Localidad), nullStr(rec.Edad), nullStr(rec.Estado),
			nullStr(rec.Atendido), nullTime(rec.FechaHora), nullStr(rec.UserID),
		)
	}

	sb.WriteString(` ON CONFLICT (row_id) DO UPDATE SET `)
	for i, col := range domain.StoreColumns[1:] {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = EXCLUDED.%s", col, col)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upsert turnos: %w", err)
	}
	return nil
}

// FetchRange reads every row whose fecha_hora falls inside [from, to],
// paging by offset until a short page. Reads past MaxPages pages stop with
// a truncation warning instead of scanning the table forever.
func (r *TurnoRepo) FetchRange(ctx context.Context, from, to time.Time) ([]domain.Turno, error) {
	out := make([]domain.Turno, 0, r.PageSize)
	for page := 0; page < r.MaxPages; page++ {
		n, err := r.fetchPage(ctx, from, to, page, &out)
		if err != nil {
			return nil, err
		}
		if n < r.PageSize {
			return out, nil
		}
	}
	r.log.Warn("range read truncated at page cap",
		zap.Int("max_pages", r.MaxPages),
		zap.Int("rows", len(out)),
		zap.Time("from", from), zap.Time("to", to))
	return out, nil
}

func (r *TurnoRepo) fetchPage(ctx context.Context, from, to time.Time, page int, out *[]domain.Turno) (int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT row_id,
			COALESCE(fecha, ''), COALESCE(hora, ''), COALESCE(tipo_turno, ''),
			COALESCE(paciente, ''), COALESCE(dni, ''), COALESCE(telefonos, ''),
			COALESCE(mail, ''), COALESCE(cobertura, ''), COALESCE(ubicacion, ''),
			COALESCE(efector, ''), COALESCE(procedimiento, ''), COALESCE(domicilio, ''),
			COALESCE(localidad, ''), COALESCE(edad, ''), COALESCE(estado, ''),
			COALESCE(atendido, ''), fecha_hora, COALESCE(user_id, '')
		FROM turnos
		WHERE fecha_hora >= $1 AND fecha_hora <= $2
		ORDER BY fecha_hora, row_id
		LIMIT $3 OFFSET $4
	`, from, to, r.PageSize, page*r.PageSize)
	if err != nil {
		return 0, fmt.Errorf("fetch turnos page %d: %w", page, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var t domain.Turno
		var fechaHora sql.NullTime
		if err := rows.Scan(
			&t.RowID,
			&t.Fecha, &t.Hora, &t.TipoTurno,
			&t.Paciente, &t.DNI, &t.Telefonos,
			&t.Mail, &t.Cobertura, &t.Ubicacion,
			&t.Efector, &t.Procedimiento, &t.Domicilio,
			&t.Localidad, &t.Edad, &t.Estado,
			&t.Atendido, &fechaHora, &t.UserID,
		); err != nil {
			return 0, fmt.Errorf("scan turno: %w", err)
		}
		if fechaHora.Valid {
			utc := fechaHora.Time.UTC()
			t.FechaHora = &utc
		}
		*out = append(*out, t)
		count++
	}
	return count, rows.Err()
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
