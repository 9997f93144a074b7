package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/stonkers/stonkers-bot/internal/position"
	"github.com/stonkers/stonkers-bot/internal/storage"
)

// WriteBacktestXLSX writes the trade log and equity curve to an Excel
// workbook at path, creating parent directories as needed.
func WriteBacktestXLSX(trades []*position.Trade, curve []storage.EquitySnapshot, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const equitySheet = "Equity Curve"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(equitySheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F5496"},
			Pattern: 1,
		},
	})
	if err != nil {
		return err
	}

	if err := writeTradesSheet(fx, tradesSheet, trades, headerStyle); err != nil {
		return err
	}
	if err := writeEquitySheet(fx, equitySheet, curve, headerStyle); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func writeTradesSheet(fx *excelize.File, sheet string, trades []*position.Trade, headerStyle int) error {
	headers := []string{"ID", "Pair", "Strategy", "Direction", "Entry Price", "Exit Price",
		"Quantity", "Entry Time", "Exit Time", "P&L", "Fees", "Exit Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return err
	}

	const timeLayout = "2006-01-02 15:04:05"
	for row, t := range trades {
		values := []interface{}{
			t.ID, t.Pair, t.StrategyName, string(t.Direction),
			t.EntryPrice, t.ExitPrice, t.Quantity,
			t.EntryTime.Format(timeLayout), t.ExitTime.Format(timeLayout),
			t.PnL, t.Fees, t.ExitReason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeEquitySheet(fx *excelize.File, sheet string, curve []storage.EquitySnapshot, headerStyle int) error {
	headers := []string{"Timestamp", "Cash", "Equity", "Unrealized P&L", "Open Positions"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", endHeader, headerStyle); err != nil {
		return err
	}

	for row, s := range curve {
		values := []interface{}{
			s.Timestamp.Format("2006-01-02 15:04:05"),
			s.Cash, s.Equity, s.UnrealizedPnL, s.NumPositions,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
