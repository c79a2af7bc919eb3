package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invoicely/invoicely/internal/ledger"
)

// Dumper streams the rows of one ledger table.
type Dumper interface {
	DumpTable(ctx context.Context, name string, emit func(record []string) error) error
}

// ExportTables writes one CSV file per ledger table into dir and returns the
// paths written, in ledger.Tables order. Each file starts with a header row.
func ExportTables(ctx context.Context, dumper Dumper, dir string) ([]string, error) {
	if dumper == nil {
		return nil, errors.New("export: ledger store is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	paths := make([]string, 0, len(ledger.Tables))
	for _, table := range ledger.Tables {
		path := filepath.Join(dir, table.Name+".csv")
		if err := exportTable(ctx, dumper, table, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func exportTable(ctx context.Context, dumper Dumper, table ledger.Table, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export %s: %w", table.Name, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	if err := dumper.DumpTable(ctx, table.Name, w.Write); err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	return nil
}
