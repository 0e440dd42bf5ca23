package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXWriter writes a pivot document as a workbook with one sheet per account.
type XLSXWriter struct {
	writer io.Writer
}

func NewXLSXWriter(writer io.Writer) *XLSXWriter {
	return &XLSXWriter{writer: writer}
}

func (x *XLSXWriter) Handle(doc *domain.ReportDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	accounts := doc.Accounts
	if len(accounts) == 0 {
		accounts = []domain.AccountReport{{AccountID: "empty"}}
	}

	defaultSheet := f.GetSheetName(0)
	for i, account := range accounts {
		sheet := sheetName(account.AccountID, i)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
		}

		if err := x.writeAccount(f, sheet, account, doc, bold, amount); err != nil {
			return err
		}
	}

	if err := f.Write(x.writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (x *XLSXWriter) writeAccount(
	f *excelize.File,
	sheet string,
	account domain.AccountReport,
	doc *domain.ReportDocument,
	bold, amount int,
) error {
	columns := doc.PriceColumns
	levels := 1 + len(doc.Metadata.InternalGroupBy)
	if len(doc.Metadata.ShowTotalBy) > 0 {
		levels++
	}

	header := make([]any, 0, levels+1+len(columns))
	header = append(header, pivot.Label(doc.Metadata.GroupBy))
	for _, column := range doc.Metadata.InternalGroupBy {
		header = append(header, pivot.Label(column))
	}
	if len(doc.Metadata.ShowTotalBy) > 0 {
		header = append(header, pivot.Label(doc.Metadata.ShowTotalBy[0]))
	}
	header = append(header, "Count")
	for _, column := range columns {
		header = append(header, pivot.Label(column))
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}

	rowNum := 2
	for _, row := range Rows(account, columns) {
		values := make([]any, levels, levels+1+len(columns))
		for i := range values {
			values[i] = ""
		}
		if row.Depth < levels {
			values[row.Depth] = row.Key
		}
		values = append(values, row.Count)
		for _, total := range row.Totals {
			values = append(values, total)
		}

		if err := setRow(f, sheet, rowNum, values); err != nil {
			return err
		}
		rowNum++
	}

	totals := make([]any, levels, levels+1+len(columns))
	totals[0] = "Total"
	for i := 1; i < levels; i++ {
		totals[i] = ""
	}
	totals = append(totals, account.TotalCount)
	for _, total := range totalsOf(account.GrandTotals, columns) {
		totals = append(totals, total)
	}
	if err := setRow(f, sheet, rowNum, totals); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("%s%d", lastCol, rowNum), bold); err != nil {
		return err
	}
	if len(columns) > 0 && rowNum > 2 {
		firstAmount, err := excelize.ColumnNumberToName(levels + 2)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, firstAmount+"2", fmt.Sprintf("%s%d", lastCol, rowNum-1), amount); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", rowNum, sheet, err)
	}
	return nil
}

// sheetName strips characters Excel rejects and keeps names unique by index.
func sheetName(accountID string, index int) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, accountID)
	if name == "" {
		name = "account"
	}
	if index > 0 {
		name = fmt.Sprintf("%d-%s", index+1, name)
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
