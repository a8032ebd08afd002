// src/parsers/ledger/parser.go
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("ledger parser: required column missing")

// Column aliases accepted in the header row. The spreadsheet has been exported under a few
// different header spellings over the years.
var columnAliases = map[string][]string{
	"recipient":     {"recipient", "account", "to", "payee"},
	"date":          {"date", "paid", "payment date"},
	"hbd":           {"hbd", "amount hbd", "hbd amount"},
	"hive":          {"hive", "amount hive", "hive amount"},
	"hive_hbd_rate": {"hive_hbd_rate", "hive/hbd", "rate", "hive to hbd"},
	"project":       {"project", "event", "proposal"},
	"category":      {"category", "categories"},
	"country":       {"country"},
	"type":          {"type", "kind"},
}

var requiredColumns = []string{"recipient", "date"}

// Parser reads the normalized ledger CSV export.
type Parser struct{}

// NewParser creates a new instance of the ledger Parser.
func NewParser() *Parser {
	return &Parser{}
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.Trim(strings.TrimSpace(s), "\"")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func normalizeCell(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, "\"")
	return strings.ReplaceAll(cleaned, "\u00A0", " ")
}

// columnIndex maps canonical column names to their position in the header.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int)
	for pos, h := range header {
		name := normalizeHeader(h)
		for canonical, aliases := range columnAliases {
			if _, done := idx[canonical]; done {
				continue
			}
			for _, a := range aliases {
				if name == a {
					idx[canonical] = pos
					break
				}
			}
		}
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return idx, nil
}

// Parse reads the header and every data row. Blank lines and rows without a recipient are
// dropped; everything else is returned raw for the ledger processor to validate.
func (p *Parser) Parse(r io.Reader) ([]models.LedgerRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields per record
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ledger parser: failed to read CSV header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ledger parser: failed to read CSV records: %w", err)
	}

	get := func(record []string, col string) string {
		pos, ok := idx[col]
		if !ok || pos >= len(record) {
			return ""
		}
		return normalizeCell(record[pos])
	}

	rows := make([]models.LedgerRow, 0, len(records))
	dropped := 0
	for _, record := range records {
		row := models.LedgerRow{
			Recipient:  get(record, "recipient"),
			Date:       get(record, "date"),
			AmountHBD:  get(record, "hbd"),
			AmountHIVE: get(record, "hive"),
			HiveToHBD:  get(record, "hive_hbd_rate"),
			Project:    get(record, "project"),
			Category:   get(record, "category"),
			Country:    get(record, "country"),
			Type:       get(record, "type"),
			RawLine:    strings.Join(record, ","),
		}
		if row.Recipient == "" {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	if dropped > 0 {
		logger.L.Debug("Ledger parser dropped rows without recipient", "count", dropped)
	}
	return rows, nil
}
