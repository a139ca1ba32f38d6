package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/redsalud/turnos-board/internal/domain"
)

func exportRows() []domain.Turno {
	when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	return []domain.Turno{
		{
			RowID: "abc123", Fecha: "01/03/2024", Hora: "09:30",
			Paciente: "PÉREZ JUAN", DNI: "30123456",
			Ubicacion: "Hospital Central", Procedimiento: "Ecografía",
			Edad: "42", Estado: "Confirmado", Atendido: "Sí",
			FechaHora: &when,
		},
		{
			RowID: "def456", Fecha: "02/03/2024", Hora: "10:00",
			Paciente: "GÓMEZ ANA", DNI: "28999888",
			Ubicacion: "Norte", Procedimiento: "Radiografía",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportRows(), nil))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}), "exports must open with a UTF-8 BOM")

	records, err := csv.NewReader(bytes.NewReader(out[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, DefaultColumns, records[0])
	assert.Equal(t, "PÉREZ JUAN", records[1][6])
	assert.Equal(t, "Ecografía", records[1][3])
}

func TestWriteCSVColumnSubset(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportRows(), []string{"dni", "fecha_hora"}))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[3:])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"dni", "fecha_hora"}, records[0])
	assert.Equal(t, "2024-03-01T12:30:00.000000Z", records[1][1])
	assert.Equal(t, "", records[2][1], "rows without an instant export a blank")
}

func TestBuildWorkbook(t *testing.T) {
	data, err := BuildWorkbook(exportRows(), nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Turnos"}, f.GetSheetList())

	rows, err := f.GetRows("Turnos")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, DefaultColumns, rows[0])

	paciente, err := f.GetCellValue("Turnos", "G2")
	require.NoError(t, err)
	assert.Equal(t, "PÉREZ JUAN", paciente)
}

func TestBuildWorkbookEmpty(t *testing.T) {
	data, err := BuildWorkbook(nil, []string{"fecha", "hora"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Turnos")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"fecha", "hora"}, rows[0])
}
