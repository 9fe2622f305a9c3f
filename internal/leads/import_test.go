package leads

import (
	"context"
	"strings"
	"testing"
)

func TestImporter_ImportCSV(t *testing.T) {
	repo := NewInMemoryRepository()
	importer := NewImporter(repo)

	csvData := `name,cpf,phone,birth_date
Carlos Almeida,123.456.789-00,5511999998888,1965-04-12
Maria Oliveira,987.654.321-99,5521988887777,1958-09-23
,111.222.333-44,5531977776666,1970-01-15
`
	result, err := importer.ImportCSV(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV returned error: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("expected 2 created, got %d", result.Created)
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 row error, got %v", result.Errors)
	}

	all, _ := repo.List(context.Background())
	if len(all) != 2 {
		t.Errorf("expected 2 leads stored, got %d", len(all))
	}
}

func TestImporter_SkipsExistingPhones(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Create(context.Background(), &CreateLeadRequest{Name: "Carlos", Phone: "5511999998888"})

	importer := NewImporter(repo)
	csvData := "name,phone\nCarlos Almeida,5511999998888\n"

	result, err := importer.ImportCSV(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ImportCSV returned error: %v", err)
	}
	if result.Skipped != 1 || result.Created != 0 {
		t.Errorf("expected skip of existing phone, got %+v", result)
	}
}

func TestImporter_MissingColumns(t *testing.T) {
	importer := NewImporter(NewInMemoryRepository())
	if _, err := importer.ImportCSV(context.Background(), strings.NewReader("cpf\n123\n")); err == nil {
		t.Fatal("expected error for missing columns")
	}
}
