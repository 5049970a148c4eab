package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSX reads Office Open XML workbooks. Cells are read with their display
// formatting so dates arrive as text the parsers understand.
type XLSX struct{}

func (XLSX) open(f *File) (*excelize.File, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", f.Name, err)
	}
	defer rc.Close()

	wb, err := excelize.OpenReader(rc)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("read sheet %q: open workbook: %w", f.Name, err)
	}
	return wb, nil
}

func (x XLSX) Sheets(ctx context.Context, f *File) ([]string, error) {
	wb, err := x.open(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = wb.Close() }()
	return wb.GetSheetList(), nil
}

func (x XLSX) Scan(ctx context.Context, f *File, sheet string, fn func([]string) error) error {
	wb, err := x.open(f)
	if err != nil {
		return err
	}
	defer func() { _ = wb.Close() }()

	name, err := resolveSheet(wb.GetSheetList(), sheet)
	if err != nil {
		return err
	}

	rows, err := wb.Rows(name)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	for n := 0; rows.Next(); n++ {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		cols, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("read sheet %q: row %d: %w", name, n+1, err)
		}
		if err := fn(cols); err != nil {
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return fmt.Errorf("read sheet %q: %w", name, err)
	}
	return nil
}

// resolveSheet picks the requested sheet, exact match first, then
// case-insensitive. An empty name selects the first sheet.
func resolveSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: workbook has no sheets", ErrEmptySheet)
	}
	if want == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == want {
			return s, nil
		}
	}
	for _, s := range sheets {
		if strings.EqualFold(s, want) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q (available: %s)", ErrSheetNotFound, want, strings.Join(sheets, ", "))
}
