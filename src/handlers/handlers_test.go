package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/processors"
	"github.com/hivefund/reconciler/src/security"
	"github.com/hivefund/reconciler/src/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeService struct {
	lastYear      int
	lastTolerance int
	lastAccount   string
	lastBatch     []models.Transaction
	verifyErr     error
	reconcileErr  error
	partial       bool
	categoryErr   error
	invalidated   bool
}

func (f *fakeService) VerifyPeriod(_ context.Context, year, tol int) (*models.VerificationReport, error) {
	f.lastYear, f.lastTolerance = year, tol
	report := &models.VerificationReport{Summary: models.VerificationSummary{Total: 1}, Results: []models.VerificationResult{{TransactionID: "a", Status: models.StatusVerified}}}
	if f.verifyErr != nil {
		report.Results[0].Status = models.StatusUnverified
		return report, f.verifyErr
	}
	return report, nil
}

func (f *fakeService) VerifyTransactions(_ context.Context, txs []models.Transaction, account string, tol int) (*models.VerificationReport, error) {
	f.lastBatch, f.lastAccount, f.lastTolerance = txs, account, tol
	results := make([]models.VerificationResult, len(txs))
	for i, tx := range txs {
		results[i] = models.VerificationResult{TransactionID: tx.ID, Status: models.StatusNotFound}
	}
	return &models.VerificationReport{Summary: models.VerificationSummary{Total: len(txs)}, Results: results}, nil
}

func (f *fakeService) Reconcile(_ context.Context, year int) (*models.ReconciliationReport, error) {
	f.lastYear = year
	if f.reconcileErr != nil && !f.partial {
		return nil, f.reconcileErr
	}
	return &models.ReconciliationReport{Period: models.YearPeriod(year), Partial: f.partial}, f.reconcileErr
}

func (f *fakeService) CategoryReport(_ context.Context, year int) (*models.CategoryReport, error) {
	if f.categoryErr != nil {
		return nil, f.categoryErr
	}
	return &models.CategoryReport{Buckets: []models.CategoryBucket{}, ExcludedProjects: []string{}}, nil
}

func (f *fakeService) InvalidateCache() { f.invalidated = true }

func newTestRouter(svc services.ReconciliationService, secret string) http.Handler {
	return NewRouter(
		NewVerificationHandler(svc, processors.NewLedgerProcessor(processors.YearlyRates{}), 1),
		NewReconciliationHandler(svc),
		security.NewAuthService(secret),
		rate.NewLimiter(rate.Inf, 1),
	)
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	rr := do(t, newTestRouter(&fakeService{}, ""), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestVerifyPeriod(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, "")

	rr := do(t, router, http.MethodGet, "/api/verification/2023?tolerance=3", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2023, svc.lastYear)
	assert.Equal(t, 3, svc.lastTolerance)

	rr = do(t, router, http.MethodGet, "/api/verification/2023", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, -1, svc.lastTolerance, "service default")
}

func TestVerifyPeriod_BadInput(t *testing.T) {
	router := newTestRouter(&fakeService{}, "")
	for _, path := range []string{"/api/verification/abc", "/api/verification/1990", "/api/verification/2023?tolerance=-2", "/api/verification/2023?tolerance=x"} {
		rr := do(t, router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestVerifyPeriod_SourceDownReturnsReport(t *testing.T) {
	svc := &fakeService{verifyErr: models.NewSourceUnavailable("transfers", errors.New("down"))}
	rr := do(t, newTestRouter(svc, ""), http.MethodGet, "/api/verification/2023", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var report models.VerificationReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusUnverified, report.Results[0].Status)
}

func TestVerifyBatch(t *testing.T) {
	svc := &fakeService{}
	body := `{"account": "@hive.fund", "tolerance_days": 2, "transactions": [
		{"recipient": "alice", "date": "2023-03-01", "hbd": "10"},
		{"recipient": "bob", "date": "31-31-2023", "hbd": "5"}
	]}`
	rr := do(t, newTestRouter(svc, ""), http.MethodPost, "/api/verification", body, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "@hive.fund", svc.lastAccount)
	assert.Equal(t, 2, svc.lastTolerance)
	require.Len(t, svc.lastBatch, 1)
	assert.Equal(t, "alice", svc.lastBatch[0].Recipient)

	var resp struct {
		Summary  models.VerificationSummary  `json:"summary"`
		Results  []models.VerificationResult `json:"results"`
		Rejected []string                    `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 1)
	assert.Len(t, resp.Rejected, 1)
}

func TestVerifyBatch_BadRequests(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, "")

	rr := do(t, router, http.MethodPost, "/api/verification", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/verification", `{"account": "NO SPACES ALLOWED", "transactions": []}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/verification", `{"transactions": []}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, svc.lastTolerance, "handler default tolerance")
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name   string
		svc    *fakeService
		status int
	}{
		{"complete", &fakeService{}, http.StatusOK},
		{"partial is still ok", &fakeService{partial: true, reconcileErr: models.NewSourceUnavailable("ledger", errors.New("x"))}, http.StatusOK},
		{"invalid year", &fakeService{reconcileErr: services.ErrInvalidYear}, http.StatusBadRequest},
		{"unexpected", &fakeService{reconcileErr: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, newTestRouter(tt.svc, ""), http.MethodGet, "/api/reconciliation/2023", "", nil)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestCategories(t *testing.T) {
	rr := do(t, newTestRouter(&fakeService{}, ""), http.MethodGet, "/api/categories/2024", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"buckets":[]`)

	svc := &fakeService{categoryErr: services.ErrAuthoritativeTotal}
	rr = do(t, newTestRouter(svc, ""), http.MethodGet, "/api/categories/2024", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAdminClearCache(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, testSecret)

	rr := do(t, router, http.MethodPost, "/api/admin/cache/clear", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/admin/cache/clear", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, svc.invalidated)

	token, err := security.NewAuthService(testSecret).GenerateToken("ops", time.Minute)
	require.NoError(t, err)
	rr = do(t, router, http.MethodPost, "/api/admin/cache/clear", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, svc.invalidated)
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	rr := do(t, newTestRouter(&fakeService{}, ""), http.MethodPost, "/api/admin/cache/clear", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRateLimit(t *testing.T) {
	router := NewRouter(
		NewVerificationHandler(&fakeService{}, processors.NewLedgerProcessor(nil), 1),
		NewReconciliationHandler(&fakeService{}),
		security.NewAuthService(""),
		rate.NewLimiter(rate.Every(time.Hour), 1),
	)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/health", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, router, http.MethodGet, "/api/health", "", nil).Code)
}

func TestUnknownAPIRoute(t *testing.T) {
	rr := do(t, newTestRouter(&fakeService{}, ""), http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "not found")
}
