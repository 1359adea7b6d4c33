package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reportrelay/internal/chain"
	"reportrelay/internal/chain/chaintest"
	"reportrelay/internal/config"
	"reportrelay/internal/db"
	"reportrelay/internal/handlers"
	"reportrelay/internal/metrics"
	"reportrelay/internal/models"
	"reportrelay/internal/services"
	"reportrelay/internal/utils"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type testServer struct {
	engine *gin.Engine
	ledger *chaintest.Ledger
	client *chain.Client
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	ledger := chaintest.NewLedger(31337, testContract)
	client, err := chain.New(context.Background(), ledger, chain.Options{
		Contract:      testContract,
		Key:           key,
		ChainID:       31337,
		CallTimeout:   time.Second,
		SubmitTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	gdb, err := db.Open(config.JournalSQLite, filepath.Join(t.TempDir(), "journal.db"), zap.NewNop())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	journal := services.NewJournal(gdb, m, zap.NewNop())
	t.Cleanup(func() { _ = journal.Close(context.Background()) })

	records, err := utils.NewCache[uint64, *chain.ReportRecord](16, time.Minute)
	require.NoError(t, err)

	svc := services.NewReportService(client, journal, records, m, zap.NewNop())

	r := gin.New()
	RegisterRoutes(r, Deps{Reports: svc, APIToken: token, Gatherer: reg})

	return &testServer{engine: r, ledger: ledger, client: client}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) count(t *testing.T) uint64 {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/reports/count", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Count uint64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Count
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.ErrorBody {
	t.Helper()
	var body handlers.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func reportBody() models.ReportRequest {
	return models.ReportRequest{
		CitizenID:         1001,
		Name:              "Maria Silva",
		EncryptedNameIPFS: "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		CurrentLocation:   "-23.5505,-46.6333",
		CrimeLocation:     "-23.5489,-46.6388",
		EvidenceURIs:      []string{"ipfs://bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku"},
		CrimeTime:         time.Now().Add(-time.Hour).Unix(),
	}
}

func TestCountOnEmptyLedger(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodGet, "/api/reports/count", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0}`, w.Body.String())
}

func TestHealthReportsConfiguredContract(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var h models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, uint64(31337), h.ChainID)
	assert.Equal(t, testContract.Hex(), h.ContractAddress)
}

func TestHealthWhileNodeDown(t *testing.T) {
	s := newTestServer(t, "")
	s.ledger.SetDown(true)

	w := s.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "connectivity", decodeError(t, w).Kind)
}

func TestSubmitThenRead(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodPost, "/api/reports", reportBody(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res models.SubmitResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.True(t, strings.HasPrefix(res.TransactionHash, "0x"))
	assert.NotZero(t, res.BlockNumber)

	assert.Equal(t, uint64(1), s.count(t))

	w = s.do(t, http.MethodGet, "/api/reports/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view models.ReportView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, uint64(1), view.ID)
	assert.Equal(t, uint64(1001), view.CitizenID)
	assert.Equal(t, utils.NameHash("Maria Silva").Hex(), view.NameHash)
	assert.Equal(t, "submitted", view.Status)
	assert.Equal(t, s.client.Signer().Hex(), view.SubmitterAddress)

	require.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, "/api/submissions/"+res.TransactionHash, nil, nil)
		return w.Code == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	w = s.do(t, http.MethodGet, "/api/submissions?page=1&per_page=5", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page handlers.SubmissionPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 5, page.PerPage)
	require.Len(t, page.Items, 1)
	assert.Equal(t, res.TransactionHash, page.Items[0].TxHash)
}

func TestSubmitWithNodeDown(t *testing.T) {
	s := newTestServer(t, "")
	s.ledger.SetDown(true)

	w := s.do(t, http.MethodPost, "/api/reports", reportBody(), nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "connectivity", body.Kind)
	assert.Contains(t, body.Error, "connectivity")

	s.ledger.SetDown(false)
	assert.Equal(t, uint64(0), s.count(t))
}

func TestSubmitRejectedByContract(t *testing.T) {
	s := newTestServer(t, "")
	s.ledger.RevertOnMine(true)

	w := s.do(t, http.MethodPost, "/api/reports", reportBody(), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, "chain_rejected", decodeError(t, w).Kind)

	s.ledger.RevertOnMine(false)
	assert.Equal(t, uint64(0), s.count(t))
}

func TestSubmitValidation(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"malformed json", "not an object", "malformed"},
		{"missing evidence", func() models.ReportRequest {
			r := reportBody()
			r.EvidenceURIs = nil
			return r
		}(), "EvidenceURIs"},
		{"bad location", func() models.ReportRequest {
			r := reportBody()
			r.CrimeLocation = "200,0"
			return r
		}(), "crimeLocation"},
		{"nan location", func() models.ReportRequest {
			r := reportBody()
			r.CrimeLocation = "NaN,NaN"
			return r
		}(), "crimeLocation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/reports", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decodeError(t, w)
			assert.Equal(t, handlers.KindValidation, body.Kind)
			assert.Contains(t, strings.Join(body.Details, "; "), tt.want)
		})
	}

	assert.Equal(t, 0, s.ledger.Sent())
}

func TestGetReportErrors(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodGet, "/api/reports/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/reports/0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/reports/7", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Kind)

	w = s.do(t, http.MethodGet, "/api/submissions/0x1234", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitRequiresToken(t *testing.T) {
	s := newTestServer(t, "relay-token")

	w := s.do(t, http.MethodPost, "/api/reports", reportBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, s.ledger.Sent())

	w = s.do(t, http.MethodPost, "/api/reports", reportBody(), http.Header{
		"Authorization": []string{"Bearer relay-token"},
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Reads stay open.
	w = s.do(t, http.MethodGet, "/api/reports/count", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	s.count(t)

	w := s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "relay_chain_call_duration_seconds")
}
