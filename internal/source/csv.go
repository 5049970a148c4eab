package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSV reads delimited text. The zero value reads comma-separated files.
type CSV struct {
	Comma rune
}

func (c CSV) Sheets(ctx context.Context, f *File) ([]string, error) {
	return []string{sheetName(f.Name)}, nil
}

func (c CSV) Scan(ctx context.Context, f *File, sheet string, fn func([]string) error) error {
	if sheet != "" && !strings.EqualFold(sheet, sheetName(f.Name)) {
		return fmt.Errorf("%w: %q (text files have a single sheet %q)", ErrSheetNotFound, sheet, sheetName(f.Name))
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", f.Name, err)
	}
	defer rc.Close()

	r := csv.NewReader(textReader(rc))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	if c.Comma != 0 {
		r.Comma = c.Comma
	}

	for n := 0; ; n++ {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if errors.Is(err, ErrFileTooLarge) {
				return err
			}
			return fmt.Errorf("read sheet %q: %w", f.Name, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
