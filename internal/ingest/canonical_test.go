package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHeader = "Fecha,Hora,Tipo Turno,Paciente,DNI,Teléfonos,Mail,Cobertura,Ubicación,Efector,Procedimiento,Domicilio,Localidad,Edad,Estado,Atendido"

func TestCanonicalize(t *testing.T) {
	n := testNormalizer(t)
	csv := sampleHeader + ",Columna Extra\n" +
		"01/03/2024,09:30,Programado,PEREZ JUAN,30123456,1155550000,juan@mail.com,OSDE,Hospital Central,Dra. Gomez,Ecografía,Calle 1,La Plata,42.0,Confirmado,Si,ignorada\n"

	tbl, err := ReadAny("turnos.csv", []byte(csv))
	require.NoError(t, err)
	require.NoError(t, ValidateColumns("turnos.csv", tbl.Columns))

	rec := n.Canonicalize(tbl, tbl.Rows[0], "user-1")

	assert.Equal(t, "3c159bf6e1bf5f94677a024477f21c6e877e5f85", rec.RowID)
	assert.Equal(t, "01/03/2024", rec.Fecha)
	assert.Equal(t, "09:30", rec.Hora)
	assert.Equal(t, "PEREZ JUAN", rec.Paciente)
	assert.Equal(t, "30123456", rec.DNI)
	assert.Equal(t, "Hospital Central", rec.Ubicacion)
	assert.Equal(t, "Ecografía", rec.Procedimiento)
	assert.Equal(t, "42", rec.Edad, "integral float ages collapse to integer text")
	assert.Equal(t, "user-1", rec.UserID)

	require.NotNil(t, rec.FechaHora)
	assert.Equal(t, "2024-03-01T12:30:00Z", rec.FechaHora.Format(time.RFC3339))

	// The extra column must not leak into any canonical field.
	for _, col := range []string{"fecha", "hora", "paciente", "estado", "atendido"} {
		assert.NotEqual(t, "ignorada", rec.Field(col))
	}
}

func TestCanonicalizeShortRow(t *testing.T) {
	n := testNormalizer(t)
	csv := sampleHeader + "\n01/03/2024,09:30\n"

	tbl, err := ReadAny("turnos.csv", []byte(csv))
	require.NoError(t, err)

	rec := n.Canonicalize(tbl, tbl.Rows[0], "user-1")
	assert.Equal(t, RowID("", "01/03/2024", "09:30", "", ""), rec.RowID)
	assert.Empty(t, rec.Paciente)
	assert.Empty(t, rec.Edad)
	assert.NotNil(t, rec.FechaHora)
}

func TestCanonicalizeUnparseableInstantStillIngested(t *testing.T) {
	n := testNormalizer(t)
	row := strings.Repeat("x,", 15) + "x"
	tbl, err := ReadAny("turnos.csv", []byte(sampleHeader+"\n"+row+"\n"))
	require.NoError(t, err)

	rec := n.Canonicalize(tbl, tbl.Rows[0], "user-1")
	assert.Nil(t, rec.FechaHora)
	assert.NotEmpty(t, rec.RowID)
	assert.Equal(t, "x", rec.Paciente)
}
