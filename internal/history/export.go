// Package history writes synced balances to spreadsheets.
package history

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"milesync/internal"
)

var headers = []string{
	"id", "client_id", "program", "balance", "raw_text",
	"confidence", "score", "captured_at", "synced_at", "url",
}

func ExportSyncsToXLSX(rows []internal.SyncRecord, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.ID)
		set(2, row.ClientID)
		set(3, row.Program)
		set(4, row.Balance)
		set(5, row.RawText)
		set(6, row.Confidence)
		set(7, row.Score)
		set(8, row.CapturedAt)
		set(9, row.SyncedAt)
		set(10, row.URL)
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
