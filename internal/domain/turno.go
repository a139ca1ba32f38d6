package domain

import "time"

// InstantLayout is the wire format for fecha_hora: ISO-8601 UTC with
// microsecond precision, matching what the store returns and what the
// frontend charts consume.
const InstantLayout = "2006-01-02T15:04:05.000000Z07:00"

// Turno is the canonical, persisted representation of one appointment entry.
// Descriptive fields keep the original locale text; empty string means the
// source cell was blank and is stored as NULL.
type Turno struct {
	RowID         string `json:"row_id" db:"row_id"`
	Fecha         string `json:"fecha" db:"fecha"`
	Hora          string `json:"hora" db:"hora"`
	TipoTurno     string `json:"tipo_turno" db:"tipo_turno"`
	Paciente      string `json:"paciente" db:"paciente"`
	DNI           string `json:"dni" db:"dni"`
	Telefonos     string `json:"telefonos" db:"telefonos"`
	Mail          string `json:"mail" db:"mail"`
	Cobertura     string `json:"cobertura" db:"cobertura"`
	Ubicacion     string `json:"ubicacion" db:"ubicacion"`
	Efector       string `json:"efector" db:"efector"`
	Procedimiento string `json:"procedimiento" db:"procedimiento"`
	Domicilio     string `json:"domicilio" db:"domicilio"`
	Localidad     string `json:"localidad" db:"localidad"`
	Edad          string `json:"edad" db:"edad"`
	Estado        string `json:"estado" db:"estado"`
	Atendido      string `json:"atendido" db:"atendido"`

	// FechaHora is the canonical UTC instant derived from Fecha+Hora in the
	// reference timezone. Nil when the source text did not parse; the row is
	// still persisted (display fields stand on their own).
	FechaHora *time.Time `json:"fecha_hora" db:"fecha_hora"`

	// UserID records which principal performed the ingestion (provenance).
	UserID string `json:"user_id" db:"user_id"`
}

// FechaHoraISO returns the canonical instant serialized for the wire, or ""
// when the instant is null.
func (t *Turno) FechaHoraISO() string {
	if t.FechaHora == nil {
		return ""
	}
	return t.FechaHora.UTC().Format(InstantLayout)
}

// Field returns the value of a store column by its snake_case name.
// Used by the report filters and the exporters, which address columns
// dynamically. Unknown names return "".
func (t *Turno) Field(name string) string {
	switch name {
	case "row_id":
		return t.RowID
	case "fecha":
		return t.Fecha
	case "hora":
		return t.Hora
	case "tipo_turno":
		return t.TipoTurno
	case "paciente":
		return t.Paciente
	case "dni":
		return t.DNI
	case "telefonos":
		return t.Telefonos
	case "mail":
		return t.Mail
	case "cobertura":
		return t.Cobertura
	case "ubicacion":
		return t.Ubicacion
	case "efector":
		return t.Efector
	case "procedimiento":
		return t.Procedimiento
	case "domicilio":
		return t.Domicilio
	case "localidad":
		return t.Localidad
	case "edad":
		return t.Edad
	case "estado":
		return t.Estado
	case "atendido":
		return t.Atendido
	case "fecha_hora":
		return t.FechaHoraISO()
	case "user_id":
		return t.UserID
	}
	return ""
}

// StoreColumns is the persisted column order of the turnos table, used by the
// reconciler's multi-row upsert and by the exporters.
var StoreColumns = []string{
	"row_id", "fecha", "hora", "tipo_turno", "paciente", "dni", "telefonos",
	"mail", "cobertura", "ubicacion", "efector", "procedimiento", "domicilio",
	"localidad", "edad", "estado", "atendido", "fecha_hora", "user_id",
}
