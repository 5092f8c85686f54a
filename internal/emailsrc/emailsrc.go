// Package emailsrc loads the batch driver's email input from CSV,
// mirroring internal/catalog.LoadCSV's header-checked, encoding/csv
// loading idiom for the other half of the CLI's two positional sources
// (spec §6: "run <products_source> <emails_source>").
package emailsrc

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hermesflow/hermes/internal/domain"
	hermeserrors "github.com/hermesflow/hermes/internal/domain/errors"
)

// wantedHeader is the minimum case-exact CSV header the email source must
// carry. subject is optional in the data model but required as a column
// (it may be empty per row).
var wantedHeader = []string{"email_id", "subject", "message"}

// LoadCSV loads a batch of CustomerEmail records from source. source is
// either a filesystem path or "SHEET_ID#SHEET_NAME"; only the file-path
// form is implemented here, matching catalog.LoadCSV's treatment of the
// spreadsheet form as an external I/O adapter's responsibility (spec
// §1/§6).
func LoadCSV(source string) ([]domain.CustomerEmail, error) {
	if strings.Contains(source, "#") && !fileExists(source) {
		return nil, hermeserrors.NewCatalogLoadError(source,
			"spreadsheet sources must be materialized to a local CSV by the I/O adapter before email load", nil)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, hermeserrors.NewCatalogLoadError(source, "failed to open email source", err)
	}
	defer f.Close()

	return loadCSVReader(source, f)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadCSVReader(source string, r io.Reader) ([]domain.CustomerEmail, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, hermeserrors.NewCatalogLoadError(source, "failed to read CSV header", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[h] = i
	}
	for _, want := range wantedHeader {
		if _, ok := colIdx[want]; !ok {
			return nil, hermeserrors.NewCatalogLoadError(source,
				fmt.Sprintf("missing required column %q", want), nil)
		}
	}

	var emails []domain.CustomerEmail
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, hermeserrors.NewCatalogLoadError(source, fmt.Sprintf("CSV parse error at line %d", line), err)
		}

		get := func(col string) string {
			idx, ok := colIdx[col]
			if !ok || idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		email, err := domain.NewCustomerEmail(strings.TrimSpace(get("email_id")), get("subject"), get("message"))
		if err != nil {
			return nil, hermeserrors.NewCatalogLoadError(source, fmt.Sprintf("invalid row at line %d: %v", line, err), err)
		}
		emails = append(emails, email)
	}

	return emails, nil
}
