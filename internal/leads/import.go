package leads

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ImportResult summarizes a customer-base CSV import.
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Importer loads a customer base CSV (name, cpf, phone, birth_date) and
// registers each row as a lead. Rows whose phone already exists are skipped
// so re-uploads are idempotent.
type Importer struct {
	repo Repository
}

// NewImporter builds an importer over the given repository.
func NewImporter(repo Repository) *Importer {
	if repo == nil {
		panic("leads: repository required")
	}
	return &Importer{repo: repo}
}

// ImportCSV reads the whole CSV stream. The first row must be a header
// containing at least "name" and "phone" columns, in any order.
func (i *Importer) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("leads: read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for idx, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	if _, ok := cols["name"]; !ok {
		return nil, errors.New("leads: csv missing name column")
	}
	if _, ok := cols["phone"]; !ok {
		return nil, errors.New("leads: csv missing phone column")
	}

	result := &ImportResult{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		req := &CreateLeadRequest{
			Name:      field(record, cols, "name"),
			CPF:       field(record, cols, "cpf"),
			Phone:     field(record, cols, "phone"),
			BirthDate: field(record, cols, "birth_date"),
		}

		if existing, err := i.repo.GetByPhone(ctx, req.Phone); err == nil && existing != nil {
			result.Skipped++
			continue
		}

		if _, err := i.repo.Create(ctx, req); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		result.Created++
	}

	return result, nil
}

func field(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
