package analysis

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Entry is one FAQ template: an example question with its category pair and
// the canned answer operators start from.
type Entry struct {
	MainCategory string
	SubCategory  string
	Question     string
	Answer       string
}

var catalogColumns = []string{"main_category", "sub_category", "question", "answer"}

// LoadCatalog reads the FAQ workbook: first sheet, one header row naming the
// main_category / sub_category / question / answer columns (any order), one
// entry per data row. Rows missing a question or an answer are skipped.
func LoadCatalog(path string) ([]Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open faq workbook %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("could not read faq sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("faq workbook %s has no header row", path)
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range catalogColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("faq workbook %s is missing column %q", path, name)
		}
	}

	cell := func(row []string, name string) string {
		i := columns[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []Entry
	for _, row := range rows[1:] {
		entry := Entry{
			MainCategory: cell(row, "main_category"),
			SubCategory:  cell(row, "sub_category"),
			Question:     cell(row, "question"),
			Answer:       cell(row, "answer"),
		}
		if entry.Question == "" || entry.Answer == "" {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
