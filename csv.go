package main

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// csvRow is one parsed line of a CSV import: title and author are
// free-text search input, isbn (if present) takes precedence per
// resolveOne's ISBN-first chain.
type csvRow struct {
	Title  string
	Author string
	ISBN   string
}

// parseCSVRows reads a header row naming title/author/isbn (in any order,
// case-insensitive) followed by data rows. A row with neither a title nor
// an ISBN is skipped rather than failing the whole import.
func parseCSVRows(raw []byte) ([]csvRow, error) {
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	titleIdx, hasTitle := col["title"]
	authorIdx, hasAuthor := col["author"]
	isbnIdx, hasISBN := col["isbn"]
	if !hasTitle && !hasISBN {
		return nil, fmt.Errorf("CSV must have a title or isbn column")
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}

		var row csvRow
		if hasTitle && titleIdx < len(record) {
			row.Title = strings.TrimSpace(record[titleIdx])
		}
		if hasAuthor && authorIdx < len(record) {
			row.Author = strings.TrimSpace(record[authorIdx])
		}
		if hasISBN && isbnIdx < len(record) {
			row.ISBN = strings.TrimSpace(record[isbnIdx])
		}

		if row.Title == "" && row.ISBN == "" {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}
