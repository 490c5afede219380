// Package xlsx writes aggregate tables to an Excel workbook, one sheet per table.
package xlsx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// Sheet is a named table destined for its own worksheet.
type Sheet struct {
	Name  string
	Frame dataframe.DataFrame
}

// WriteWorkbook saves the sheets to path in order. The header row is bold and
// frozen. Missing values are left as empty cells.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return errors.New("write workbook: no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	used := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := uniqueName(sheetName(s.Name), used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("write workbook: sheet %q: %w", name, err)
		}
		if err := writeFrame(f, name, s.Frame, bold); err != nil {
			return fmt.Errorf("write workbook: sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeFrame(f *excelize.File, sheet string, df dataframe.DataFrame, headerStyle int) error {
	if df.Err != nil {
		return df.Err
	}
	names := df.Names()
	for i, name := range names {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	if len(names) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(names), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	for colIdx, name := range names {
		col := df.Col(name)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			elem := col.Elem(rowIdx)
			if elem.IsNA() {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, elem.Val()); err != nil {
				return err
			}
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// sheetName strips characters Excel rejects and truncates to the length limit.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		base := []rune(name)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
