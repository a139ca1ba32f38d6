package ingest

import (
	"github.com/redsalud/turnos-board/internal/domain"
)

// Canonicalize turns one validated raw row into its persisted form: the 16
// required columns under their store names, the derived row identity, the
// UTC instant, and the ingesting user's id. Columns outside the required
// set are dropped.
func (n *Normalizer) Canonicalize(tbl *Table, row []string, userID string) domain.Turno {
	fecha := tbl.Cell(row, "Fecha")
	hora := tbl.Cell(row, "Hora")
	dni := tbl.Cell(row, "DNI")
	ubicacion := tbl.Cell(row, "Ubicación")
	procedimiento := tbl.Cell(row, "Procedimiento")

	return domain.Turno{
		RowID:         RowID(dni, fecha, hora, ubicacion, procedimiento),
		Fecha:         fecha,
		Hora:          hora,
		TipoTurno:     tbl.Cell(row, "Tipo Turno"),
		Paciente:      tbl.Cell(row, "Paciente"),
		DNI:           dni,
		Telefonos:     tbl.Cell(row, "Teléfonos"),
		Mail:          tbl.Cell(row, "Mail"),
		Cobertura:     tbl.Cell(row, "Cobertura"),
		Ubicacion:     ubicacion,
		Efector:       tbl.Cell(row, "Efector"),
		Procedimiento: procedimiento,
		Domicilio:     tbl.Cell(row, "Domicilio"),
		Localidad:     tbl.Cell(row, "Localidad"),
		Edad:          NormalizeNumeric(tbl.Cell(row, "Edad")),
		Estado:        tbl.Cell(row, "Estado"),
		Atendido:      tbl.Cell(row, "Atendido"),
		FechaHora:     n.OccurredAt(fecha, hora),
		UserID:        userID,
	}
}
