// Package report writes the batch driver's per-email results to the
// output file layout: four merge-by-email-id CSVs plus a per-email YAML
// dump of the full terminal state, grounded on the teacher's CSV-writing
// idiom (encoding/csv, used the same way in internal/catalog.LoadCSV) and
// on gopkg.in/yaml.v3, the YAML library the teacher and the rest of the
// pack already depend on.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hermesflow/hermes/internal/batch"
	"github.com/hermesflow/hermes/internal/domain"
)

// defaultApology is the fallback response text for an email that has no
// Composer output but does have Fulfiller or Advisor output. An email with
// none of the three gets no response row.
const defaultApology = "We're sorry, we weren't able to process your message automatically. " +
	"A member of our team will follow up with you shortly."

// Writer persists a batch of results under a single output directory.
type Writer struct {
	OutDir string
}

func New(outDir string) *Writer {
	return &Writer{OutDir: outDir}
}

// WriteAll writes every output file for results, merging the four CSVs
// with any pre-existing rows and replacing rows for email ids present in
// results, and one results/<email_id>.yml per result.
func (w *Writer) WriteAll(results []batch.Result) error {
	if err := os.MkdirAll(w.OutDir, 0o755); err != nil {
		return fmt.Errorf("report: creating out dir: %w", err)
	}

	if err := w.writeClassificationCSV(results); err != nil {
		return err
	}
	if err := w.writeOrderStatusCSV(results); err != nil {
		return err
	}
	if err := w.writeOrderResponseCSV(results); err != nil {
		return err
	}
	if err := w.writeInquiryResponseCSV(results); err != nil {
		return err
	}
	return w.writeResultYAMLs(results)
}

func (w *Writer) writeClassificationCSV(results []batch.Result) error {
	type row struct{ emailID, category string }
	rows := make([]row, 0, len(results))
	for _, r := range results {
		if r.State.Classifier == nil {
			continue
		}
		rows = append(rows, row{r.Email.EmailID, string(r.State.Classifier.Intent)})
	}
	return mergeCSV(filepath.Join(w.OutDir, "email-classification.csv"),
		[]string{"email ID", "category"},
		rowKeys(rows, func(r row) string { return r.emailID }),
		func(r row) []string { return []string{r.emailID, r.category} },
		rows)
}

func (w *Writer) writeOrderStatusCSV(results []batch.Result) error {
	type row struct{ emailID, productID string; quantity int; status string }
	var rows []row
	for _, r := range results {
		if r.State.Fulfiller == nil {
			continue
		}
		for _, l := range r.State.Fulfiller.Lines {
			rows = append(rows, row{r.Email.EmailID, l.ProductID, l.Quantity, string(l.Status)})
		}
	}
	return mergeCSV(filepath.Join(w.OutDir, "order-status.csv"),
		[]string{"email ID", "product ID", "quantity", "status"},
		rowKeys(rows, func(r row) string { return r.emailID }),
		func(r row) []string { return []string{r.emailID, r.productID, strconv.Itoa(r.quantity), r.status} },
		rows)
}

func (w *Writer) writeOrderResponseCSV(results []batch.Result) error {
	type row struct{ emailID, response string }
	var rows []row
	for _, r := range results {
		if r.State.Fulfiller == nil {
			continue
		}
		rows = append(rows, row{r.Email.EmailID, responseOrApology(r.State)})
	}
	return mergeCSV(filepath.Join(w.OutDir, "order-response.csv"),
		[]string{"email ID", "response"},
		rowKeys(rows, func(r row) string { return r.emailID }),
		func(r row) []string { return []string{r.emailID, r.response} },
		rows)
}

func (w *Writer) writeInquiryResponseCSV(results []batch.Result) error {
	type row struct{ emailID, response string }
	var rows []row
	for _, r := range results {
		if r.State.Advisor == nil {
			continue
		}
		rows = append(rows, row{r.Email.EmailID, responseOrApology(r.State)})
	}
	return mergeCSV(filepath.Join(w.OutDir, "inquiry-response.csv"),
		[]string{"email ID", "response"},
		rowKeys(rows, func(r row) string { return r.emailID }),
		func(r row) []string { return []string{r.emailID, r.response} },
		rows)
}

// responseOrApology returns the Composer's reply, or defaultApology when
// the Composer itself failed (state.Composer is nil) after an upstream
// node had already produced output worth responding to.
func responseOrApology(state *domain.WorkflowState) string {
	if state.Composer == nil {
		return defaultApology
	}
	return state.Composer.ResponseBody
}

func (w *Writer) writeResultYAMLs(results []batch.Result) error {
	dir := filepath.Join(w.OutDir, "results")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: creating results dir: %w", err)
	}
	for _, r := range results {
		out, err := yaml.Marshal(r.State)
		if err != nil {
			return fmt.Errorf("report: marshaling state for %s: %w", r.Email.EmailID, err)
		}
		path := filepath.Join(dir, r.Email.EmailID+".yml")
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("report: writing %s: %w", path, err)
		}
	}
	return nil
}

// rowKeys extracts the email id of every new row, used as the replace-set
// for mergeCSV.
func rowKeys[T any](rows []T, key func(T) string) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = key(r)
	}
	return keys
}

// mergeCSV reads any pre-existing file at path, drops every row whose
// first column (email ID) appears in replacedIDs, appends toRow(row) for
// every new row, sorts by email ID for determinism, and rewrites the file
// with header. A missing file is treated as an empty one.
func mergeCSV[T any](path string, header []string, replacedIDs []string, toRow func(T) []string, rows []T) error {
	replaced := make(map[string]struct{}, len(replacedIDs))
	for _, id := range replacedIDs {
		replaced[id] = struct{}{}
	}

	existing, err := readCSVRows(path)
	if err != nil {
		return err
	}

	merged := make([][]string, 0, len(existing)+len(rows))
	for _, row := range existing {
		if len(row) == 0 {
			continue
		}
		if _, drop := replaced[row[0]]; drop {
			continue
		}
		merged = append(merged, row)
	}
	for _, r := range rows {
		merged = append(merged, toRow(r))
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i][0] < merged[j][0] })

	return writeCSVRows(path, header, merged)
}

// readCSVRows reads path's data rows (header skipped), returning nil for a
// file that does not yet exist.
func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("report: reading %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[1:], nil
}

func writeCSVRows(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("report: writing header to %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("report: writing row to %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}
