package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/redsalud/turnos-board/internal/domain"
)

// DefaultColumns is the column set exports carry unless the caller picks
// their own. Order matches how the dashboard presents rows.
var DefaultColumns = []string{
	"fecha", "hora", "ubicacion", "procedimiento", "efector", "cobertura",
	"paciente", "dni", "edad", "estado", "atendido", "localidad",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV serializes rows as comma-delimited text prefixed with a UTF-8
// byte-order mark, so spreadsheet software in es-AR locales opens accents
// correctly instead of guessing the encoding.
func WriteCSV(w io.Writer, rows []domain.Turno, columns []string) error {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = row.Field(col)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
