// src/sources/ledger_source.go
package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/parsers/ledger"
	"github.com/hivefund/reconciler/src/processors"
	"github.com/hivefund/reconciler/src/security/validation"
)

// maxLedgerBytes caps a downloaded export.
const maxLedgerBytes = 32 << 20

// CSVLedgerSource loads the normalized ledger export from a local path or an HTTP(S) URL and
// enriches it through the ledger processor. Every call re-reads the export.
type CSVLedgerSource struct {
	location  string
	client    *http.Client
	parser    *ledger.Parser
	processor *processors.LedgerProcessor
}

// NewCSVLedgerSource creates a ledger source. timeout bounds remote downloads.
func NewCSVLedgerSource(location string, timeout time.Duration, rates processors.RateLookup) *CSVLedgerSource {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	return &CSVLedgerSource{
		location:  strings.TrimSpace(location),
		client:    &http.Client{Timeout: timeout},
		parser:    ledger.NewParser(),
		processor: processors.NewLedgerProcessor(rates),
	}
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Transactions implements LedgerSource.
func (s *CSVLedgerSource) Transactions(ctx context.Context) ([]models.Transaction, error) {
	log := logger.FromContext(ctx)

	content, err := s.read(ctx)
	if err != nil {
		return nil, models.NewSourceUnavailable(processors.SourceLedger, err)
	}
	if _, err := validation.ValidateTextContent(content); err != nil {
		return nil, models.NewSourceUnavailable(processors.SourceLedger, err)
	}

	rows, err := s.parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewSourceUnavailable(processors.SourceLedger, err)
	}
	txs, skipped := s.processor.Process(rows)
	if len(skipped) > 0 {
		log.Warn("Ledger rows skipped during processing", "skipped", len(skipped), "processed", len(txs))
	}
	log.Debug("Ledger loaded", "location", s.location, "rows", len(rows), "transactions", len(txs))
	return txs, nil
}

func (s *CSVLedgerSource) read(ctx context.Context) ([]byte, error) {
	if s.location == "" {
		return nil, fmt.Errorf("no ledger location configured")
	}
	if !isRemote(s.location) {
		return os.ReadFile(s.location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download ledger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger download returned status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLedgerBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger body: %w", err)
	}
	if len(body) > maxLedgerBytes {
		return nil, fmt.Errorf("ledger export exceeds %d bytes", maxLedgerBytes)
	}
	return body, nil
}
