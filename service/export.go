package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"expensehub/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{"ID", "Subject", "Category", "Amount", "Currency", "Status", "Tags", "Submitted At", "Created At"}

const exportTimeLayout = "2006-01-02 15:04:05"

func exportRow(e models.Expense) []string {
	category := ""
	if e.Category != nil {
		category = e.Category.Name
	}
	submitted := ""
	if e.SubmittedAt != nil {
		submitted = e.SubmittedAt.Format(exportTimeLayout)
	}
	return []string{
		fmt.Sprintf("%d", e.ID),
		e.Subject,
		category,
		decimal.NewFromFloat(e.Amount).StringFixed(2),
		e.Currency,
		string(e.Status),
		strings.Join(e.Tags, ";"),
		submitted,
		e.CreatedAt.Format(exportTimeLayout),
	}
}

// WriteCSV 带 BOM，Excel 可直接打开
func WriteCSV(w io.Writer, expenses []models.Expense) error {
	if _, err := io.WriteString(w, "\xEF\xBB\xBF"); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeaders); err != nil {
		return err
	}
	for _, e := range expenses {
		if err := writer.Write(exportRow(e)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX 生成带合计行的工作簿，合计按币种分开
func WriteXLSX(w io.Writer, expenses []models.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Expenses"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	dataStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    border,
	})
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border: border,
	})

	widths := []float64{8, 30, 16, 12, 10, 12, 24, 20, 20}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, width)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
	_ = f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	totals := map[string]decimal.Decimal{}
	var currencies []string
	for i, e := range expenses {
		row := i + 2
		values := exportRow(e)
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if j == 3 {
				_ = f.SetCellValue(sheet, cell, e.Amount)
				continue
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
		_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), dataStyle)

		if _, ok := totals[e.Currency]; !ok {
			currencies = append(currencies, e.Currency)
		}
		totals[e.Currency] = totals[e.Currency].Add(decimal.NewFromFloat(e.Amount))
	}

	row := len(expenses) + 2
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Total")
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("%d expenses", len(expenses)))
	_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), summaryStyle)
	for _, currency := range currencies {
		total, _ := totals[currency].Round(2).Float64()
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), total)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), currency)
		_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), summaryStyle)
		row++
	}

	return f.Write(w)
}
