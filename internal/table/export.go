package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Column describes one rendered and exported column.
type Column[T any] struct {
	Key      string
	Title    string
	Width    int
	Sortable bool
	Value    func(T) string
}

func (col Column[T]) title() string {
	if col.Title != "" {
		return col.Title
	}
	return col.Key
}

// ExportCSV writes the loaded rows as CSV with a header row. When rows are
// selected only those rows are written.
func (c *Controller[T]) ExportCSV(w io.Writer, columns []Column[T]) error {
	if !c.cfg.Exportable {
		return fmt.Errorf("export: %w", ErrDisabled)
	}
	cw := csv.NewWriter(w)
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.title()
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	onlySelected := len(c.selected) > 0
	record := make([]string, len(columns))
	for _, row := range c.Rows() {
		if onlySelected && !c.IsSelected(c.idOf(row)) {
			continue
		}
		for i, col := range columns {
			record[i] = ""
			if col.Value != nil {
				record[i] = col.Value(row)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
