// Package export renders the MPI register as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"pcba-mpi-api-server/internal/service"
)

const SheetName = "MPIs"

var Headers = []string{
	"Job Number", "MPI Number", "Version", "Customer", "Assembly", "Assembly Rev",
	"Drawing", "Drawing Rev", "Quantity", "Status", "Engineer", "Updated",
}

// Rows flattens register entries into cell values, one row per MPI.
func Rows(entries []service.RegisterEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		m := e.MPI
		rows = append(rows, []string{
			m.JobNumber,
			m.MpiNumber,
			m.MpiVersion,
			e.CustomerName,
			m.CustomerAssemblyName,
			m.AssemblyRev,
			m.DrawingName,
			m.DrawingRev,
			strconv.Itoa(m.AssemblyQuantity),
			string(m.Status),
			e.EngineerName,
			m.UpdatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

// WriteMPIRegister writes an .xlsx workbook with a bold header row to w.
func WriteMPIRegister(w io.Writer, entries []service.RegisterEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, header := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range Rows(entries) {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return err
			}
		}
	}

	first, _ := excelize.ColumnNumberToName(1)
	last, _ := excelize.ColumnNumberToName(len(Headers))
	if err := f.SetColWidth(SheetName, first, last, 16); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
