package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadCSV reads the raw attribute table from a CSV file and builds the
// catalog. The header must contain every attribute column plus Model.
func LoadCSV(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	c, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCSV reads the raw attribute table from CSV data.
func ParseCSV(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colAt := make(map[string]int, len(header))
	for i, name := range header {
		colAt[strings.TrimSpace(name)] = i
	}

	if _, ok := colAt[ModelColumn]; !ok {
		return nil, fmt.Errorf("%w: missing column %q", ErrInvalidCatalog, ModelColumn)
	}
	for _, spec := range Attributes {
		if _, ok := colAt[spec.Name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidCatalog, spec.Name)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		row := Row{
			Model: strings.TrimSpace(record[colAt[ModelColumn]]),
			Attrs: make(Preferences, len(Attributes)),
		}
		for _, spec := range Attributes {
			raw := strings.TrimSpace(record[colAt[spec.Name]])
			if spec.Kind == KindNumeric {
				f, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: column %q: %w", line, spec.Name, err)
				}
				row.Attrs[spec.Name] = Number(f)
			} else {
				row.Attrs[spec.Name] = String(raw)
			}
		}
		rows = append(rows, row)
	}

	return New(rows)
}
