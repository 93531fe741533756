package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/service"
)

func TestWriteMPIRegister(t *testing.T) {
	entries := []service.RegisterEntry{{
		MPI: models.MPI{
			JobNumber:            "U000001",
			MpiNumber:            "MPI-000001",
			MpiVersion:           "Rev A",
			CustomerAssemblyName: "BoardA",
			AssemblyRev:          "A",
			DrawingName:          "DwgA",
			DrawingRev:           "1",
			AssemblyQuantity:     10,
			Status:               models.StatusApproved,
			UpdatedAt:            time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC),
		},
		CustomerName: "Acme",
		EngineerName: "Eve",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteMPIRegister(&buf, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, []string{
		"U000001", "MPI-000001", "Rev A", "Acme", "BoardA", "A",
		"DwgA", "1", "10", "approved", "Eve", "2024-01-02 15:04",
	}, rows[1])
}

func TestWriteEmptyRegister(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMPIRegister(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
