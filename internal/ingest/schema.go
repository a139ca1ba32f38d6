package ingest

import (
	"fmt"
	"strings"
)

// RequiredColumns are the exact header names an appointment export must
// carry. Matching is accent and case sensitive; scheduler exports that
// localize or rename headers are rejected rather than guessed at.
var RequiredColumns = []string{
	"Fecha",
	"Hora",
	"Tipo Turno",
	"Paciente",
	"DNI",
	"Teléfonos",
	"Mail",
	"Cobertura",
	"Ubicación",
	"Efector",
	"Procedimiento",
	"Domicilio",
	"Localidad",
	"Edad",
	"Estado",
	"Atendido",
}

// MissingColumnsError reports which required headers a file lacks, in
// canonical column order.
type MissingColumnsError struct {
	File    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("file %q is missing required columns: %s", e.File, strings.Join(e.Missing, ", "))
}

// ValidateColumns checks a parsed header against RequiredColumns. Extra
// columns are fine; they are dropped later during canonicalization.
func ValidateColumns(file string, columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for _, required := range RequiredColumns {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{File: file, Missing: missing}
	}
	return nil
}
