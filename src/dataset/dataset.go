// Package dataset holds the curated, versioned configuration data: the organization account,
// known loan wallets, the hand-maintained loan/refund tables, the category taxonomy and the
// yearly HIVE->HBD averages. It is loaded once at startup and never mutated.
package dataset

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/processors"
	"github.com/hivefund/reconciler/src/security/validation"
)

//go:embed default.json
var defaultJSON []byte

var ErrInvalidDataset = errors.New("invalid dataset")

type record struct {
	Date         string  `json:"date"`
	HBD          float64 `json:"hbd"`
	HIVE         float64 `json:"hive"`
	Counterparty string  `json:"counterparty"`
	Note         string  `json:"note"`
}

type file struct {
	Version      string                 `json:"version"`
	Organization string                 `json:"organization"`
	LoanWallets  []string               `json:"loan_wallets"`
	Loans        []record               `json:"loans"`
	LoanRefunds  []record               `json:"loan_refunds"`
	EventRefunds []record               `json:"event_refunds"`
	Taxonomy     models.Taxonomy        `json:"taxonomy"`
	YearlyRates  processors.YearlyRates `json:"yearly_rates"`
}

// Dataset is the parsed configuration data.
type Dataset struct {
	Version      string
	Organization string
	LoanWallets  []string
	Loans        []models.ManualRecord
	LoanRefunds  []models.ManualRecord
	EventRefunds []models.ManualRecord
	Taxonomy     models.Taxonomy
	YearlyRates  processors.YearlyRates
}

// Default returns the embedded dataset.
func Default() (*Dataset, error) {
	return Parse(defaultJSON)
}

// Load reads the dataset from path, or the embedded default when path is empty.
func Load(path string) (*Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	logger.L.Info("Dataset loaded", "path", path, "version", ds.Version)
	return ds, nil
}

// Parse decodes and validates a dataset document.
func Parse(data []byte) (*Dataset, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if err := validation.ValidateStringNotEmpty(f.Version, "version"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if err := validation.ValidateAccountName(f.Organization, "organization"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	for i, w := range f.LoanWallets {
		if err := validation.ValidateAccountName(w, fmt.Sprintf("loan_wallets[%d]", i)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
		}
	}
	if err := validateTaxonomy(f.Taxonomy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	if f.Taxonomy.Version == "" {
		f.Taxonomy.Version = f.Version
	}

	ds := &Dataset{
		Version:      f.Version,
		Organization: processors.NormalizeAccount(f.Organization),
		Taxonomy:     f.Taxonomy,
		YearlyRates:  f.YearlyRates,
	}
	for _, w := range f.LoanWallets {
		ds.LoanWallets = append(ds.LoanWallets, processors.NormalizeAccount(w))
	}
	if ds.YearlyRates == nil {
		ds.YearlyRates = processors.YearlyRates{}
	}

	var err error
	if ds.Loans, err = convert(f.Loans, models.KindLoan); err != nil {
		return nil, err
	}
	if ds.LoanRefunds, err = convert(f.LoanRefunds, models.KindLoanRefund); err != nil {
		return nil, err
	}
	if ds.EventRefunds, err = convert(f.EventRefunds, models.KindEventRefund); err != nil {
		return nil, err
	}
	return ds, nil
}

func validateTaxonomy(t models.Taxonomy) error {
	if len(t.Entries) == 0 {
		return errors.New("taxonomy has no entries")
	}
	names := make(map[string]bool, len(t.Entries))
	for i, e := range t.Entries {
		if err := validation.ValidateStringNotEmpty(e.Name, fmt.Sprintf("taxonomy.entries[%d].name", i)); err != nil {
			return err
		}
		key := strings.ToLower(e.Name)
		if names[key] {
			return fmt.Errorf("duplicate taxonomy entry %q", e.Name)
		}
		names[key] = true
	}
	for i, r := range t.KeywordRules {
		if !names[strings.ToLower(r.Bucket)] {
			return fmt.Errorf("keyword_rules[%d] targets unknown bucket %q", i, r.Bucket)
		}
		if len(r.Require) == 0 {
			return fmt.Errorf("keyword_rules[%d] has no keyword groups", i)
		}
	}
	return nil
}

func convert(records []record, kind models.ManualRecordKind) ([]models.ManualRecord, error) {
	out := make([]models.ManualRecord, 0, len(records))
	for i, r := range records {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(r.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidDataset, kind, i, &models.DateParseError{Value: r.Date, Reason: err.Error()})
		}
		if r.HBD == 0 && r.HIVE == 0 {
			return nil, fmt.Errorf("%w: %s[%d] has no amount", ErrInvalidDataset, kind, i)
		}
		out = append(out, models.ManualRecord{
			Date:         date,
			AmountHBD:    r.HBD,
			AmountHIVE:   r.HIVE,
			Counterparty: processors.NormalizeAccount(r.Counterparty),
			Kind:         kind,
			Note:         r.Note,
		})
	}
	return out, nil
}

// ManualRecords returns loans, loan refunds and event refunds in date order.
func (d *Dataset) ManualRecords(_ context.Context) ([]models.ManualRecord, error) {
	all := make([]models.ManualRecord, 0, len(d.Loans)+len(d.LoanRefunds)+len(d.EventRefunds))
	all = append(all, d.Loans...)
	all = append(all, d.LoanRefunds...)
	all = append(all, d.EventRefunds...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.Before(all[j].Date) })
	return all, nil
}
