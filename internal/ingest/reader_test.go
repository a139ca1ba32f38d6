package ingest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadAnyDelimiterInference(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"comma", "Fecha,Hora,Paciente\n01/03/2024,09:30,PEREZ JUAN\n"},
		{"semicolon", "Fecha;Hora;Paciente\n01/03/2024;09:30;PEREZ JUAN\n"},
		{"tab", "Fecha\tHora\tPaciente\n01/03/2024\t09:30\tPEREZ JUAN\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadAny("turnos.csv", []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, []string{"Fecha", "Hora", "Paciente"}, tbl.Columns)
			require.Len(t, tbl.Rows, 1)
			assert.Equal(t, "PEREZ JUAN", tbl.Cell(tbl.Rows[0], "Paciente"))
		})
	}
}

func TestReadAnyStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Fecha,Hora\n01/03/2024,09:30\n")...)

	tbl, err := ReadAny("turnos.csv", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fecha", "Hora"}, tbl.Columns)
}

func TestReadAnySingleColumnFallback(t *testing.T) {
	tbl, err := ReadAny("notas.csv", []byte("Fecha\n01/03/2024\n02/03/2024\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Fecha"}, tbl.Columns)
	assert.Len(t, tbl.Rows, 2)
}

func TestReadAnyEmptyFile(t *testing.T) {
	_, err := ReadAny("vacio.csv", nil)
	assert.ErrorIs(t, err, ErrUnreadableFile)
}

func TestReadAnyWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Fecha", "Hora", "Paciente"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"01/03/2024", "09:30", "PEREZ JUAN"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	tbl, err := ReadAny("turnos.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Fecha", "Hora", "Paciente"}, tbl.Columns)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "09:30", tbl.Cell(tbl.Rows[0], "Hora"))
}

func TestReadAnyCorruptWorkbook(t *testing.T) {
	_, err := ReadAny("turnos.xlsx", []byte("this is not a workbook"))
	assert.ErrorIs(t, err, ErrUnreadableFile)
}

func TestTableCellGuardsShortRows(t *testing.T) {
	tbl, err := ReadAny("turnos.csv", []byte("Fecha,Hora,Paciente\n01/03/2024,09:30\n"))
	require.NoError(t, err)
	assert.Equal(t, "", tbl.Cell(tbl.Rows[0], "Paciente"))
	assert.Equal(t, "", tbl.Cell(tbl.Rows[0], "NoExiste"))
}
