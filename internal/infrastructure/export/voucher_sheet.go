package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

// SheetName is the worksheet holding the voucher rows
const SheetName = "Vouchers"

var headers = []string{
	"Voucher Number",
	"Student",
	"Roll Number",
	"Class",
	"Month",
	"Amount",
	"Due Date",
	"Status",
	"Display Status",
}

// VoucherSheet implements port.VoucherExporter as a single-sheet xlsx workbook
type VoucherSheet struct {
	logger *zap.Logger
}

// NewVoucherSheet creates a new xlsx exporter
func NewVoucherSheet(logger *zap.Logger) *VoucherSheet {
	return &VoucherSheet{logger: logger}
}

// Export writes title on the first row, headers on the second and one row per voucher after that
func (e *VoucherSheet) Export(ctx context.Context, title string, rows []port.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	e.setCell(f, "A1", title)
	if err := f.SetSheetRow(SheetName, "A2", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 2, style)
	}

	total := 0.0
	for i, row := range rows {
		v := row.Voucher
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			v.VoucherNumber,
			v.StudentName,
			v.RollNumber,
			v.ClassName,
			v.Month,
			v.Amount,
			v.DueDate.UTC().Format(entity.DateLayout),
			v.Status,
			row.DisplayStatus,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write voucher %s: %w", v.ID, err)
		}
		total += v.Amount
	}

	totalRow := len(rows) + 3
	e.setCell(f, fmt.Sprintf("E%d", totalRow), "Total")
	e.setCell(f, fmt.Sprintf("F%d", totalRow), total)

	_ = f.SetColWidth(SheetName, "A", "B", 22)
	_ = f.SetColWidth(SheetName, "C", "I", 14)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		e.logger.Error("Failed to write workbook", zap.Error(err))
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Voucher sheet exported", zap.String("title", title), zap.Int("rows", len(rows)))
	return buf.Bytes(), nil
}

func (e *VoucherSheet) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

var _ port.VoucherExporter = (*VoucherSheet)(nil)
