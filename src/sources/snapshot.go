package sources

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/security/validation"
)

// ReadTransferSnapshot decodes a JSON array of transfers exported from a chain indexer. Every
// entry needs an id, both accounts, a positive amount and a known currency.
func ReadTransferSnapshot(r io.Reader) ([]models.Transfer, error) {
	var transfers []models.Transfer
	if err := json.NewDecoder(r).Decode(&transfers); err != nil {
		return nil, fmt.Errorf("failed to decode transfer snapshot: %w", err)
	}
	for i := range transfers {
		t := &transfers[i]
		if err := validation.ValidateStringNotEmpty(t.ID, "id"); err != nil {
			return nil, fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		if err := validation.ValidateAccountName(t.Sender, "sender"); err != nil {
			return nil, fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		if err := validation.ValidateAccountName(t.Recipient, "recipient"); err != nil {
			return nil, fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		t.Currency = strings.ToUpper(strings.TrimSpace(t.Currency))
		if t.Currency != models.CurrencyHBD && t.Currency != models.CurrencyHIVE {
			return nil, fmt.Errorf("snapshot entry %d: %w: unknown currency %q", i, validation.ErrValidationFailed, t.Currency)
		}
		if t.Amount <= 0 {
			return nil, fmt.Errorf("snapshot entry %d: %w: amount must be positive", i, validation.ErrValidationFailed)
		}
		if t.Timestamp.IsZero() {
			return nil, fmt.Errorf("snapshot entry %d: %w: missing timestamp", i, validation.ErrValidationFailed)
		}
	}
	return transfers, nil
}
