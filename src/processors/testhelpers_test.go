package processors

import (
	"context"
	"time"

	"github.com/hivefund/reconciler/src/models"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func transfer(id, date, from, to string, amount float64, currency string) models.Transfer {
	return models.Transfer{ID: id, Timestamp: d(date).Add(12 * time.Hour), Sender: from, Recipient: to, Amount: amount, Currency: currency}
}

// mockTransferSource records the calls it receives.
type mockTransferSource struct {
	transfers []models.Transfer
	err       error
	calls     int
	accounts  []string
}

func (m *mockTransferSource) Transfers(_ context.Context, account string, _ *models.DateRange) ([]models.Transfer, error) {
	m.calls++
	m.accounts = append(m.accounts, account)
	if m.err != nil {
		return nil, m.err
	}
	return m.transfers, nil
}
