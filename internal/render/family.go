package render

import (
	"context"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/report"
)

// FamilySheet is the sheet name of family workbooks.
const FamilySheet = "Inventory"

var familyHeader = []any{"Code", "Name", "Quantity", "Theoretical", "Unit cost", "Value"}

// RenderFamily implements report.Renderer. The workbook is written to
// <dir>/families/<family>.xlsx.
func (r *Renderer) RenderFamily(ctx context.Context, dir string, fr report.FamilyReport) (string, error) {
	path := filepath.Join(dir, constants.FamiliesDir, string(fr.Family.Code)+".xlsx")

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), FamilySheet); err != nil {
		return "", errors.WrapIO("render", path, err)
	}
	if err := r.fillFamily(f, fr); err != nil {
		return "", errors.WrapIO("render", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return "", errors.WrapIO("create", filepath.Dir(path), err)
	}
	if err := f.SaveAs(path); err != nil {
		return "", errors.WrapIO("write", path, err)
	}
	logging.FromContext(logging.WithFamily(ctx, string(fr.Family.Code))).Debug().
		Str("path", path).
		Msg("Family report rendered")
	return path, nil
}

func (r *Renderer) fillFamily(f *excelize.File, fr report.FamilyReport) error {
	title := string(fr.Family.Code)
	if fr.Family.Label != "" {
		title += " " + fr.Family.Label
	}
	if err := f.SetCellValue(FamilySheet, "A1", title); err != nil {
		return err
	}
	if err := f.SetCellValue(FamilySheet, "A2", "Stock count of "+fr.Date.Format(constants.DateFormat)); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	const headerRow = 4
	if err := f.SetSheetRow(FamilySheet, cell(1, headerRow), &familyHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(FamilySheet, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(FamilySheet, cell(1, headerRow), cell(len(familyHeader), headerRow), bold); err != nil {
		return err
	}

	row := headerRow + 1
	for _, l := range fr.Lines {
		values := []any{l.Code, l.Name, l.Quantity, l.Theoretical, l.UnitCost.InexactFloat64(), l.Value.InexactFloat64()}
		if err := f.SetSheetRow(FamilySheet, cell(1, row), &values); err != nil {
			return err
		}
		row++
	}
	if len(fr.Lines) > 0 {
		if err := f.SetCellStyle(FamilySheet, cell(5, headerRow+1), cell(6, row-1), money); err != nil {
			return err
		}
	}

	total := []any{"Total", "", fr.Quantity, "", "", fr.Total.InexactFloat64()}
	if err := f.SetSheetRow(FamilySheet, cell(1, row), &total); err != nil {
		return err
	}
	if err := f.SetCellStyle(FamilySheet, cell(1, row), cell(len(total), row), bold); err != nil {
		return err
	}
	return f.SetColWidth(FamilySheet, "B", "B", 32)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
