package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgssim/internal/checkpointstore/memory"
	"rtgssim/internal/orchestrator"
	"rtgssim/internal/policy"
)

func submitTree(id string) *policy.DecisionTreeDef {
	return &policy.DecisionTreeDef{
		PolicyID: id, Version: "1",
		PaymentTree: &policy.TreeNode{Kind: policy.NodeAction, NodeID: "submit", Action: policy.ActionSubmit},
	}
}

func testOrchestrator() *orchestrator.Orchestrator {
	cfg := orchestrator.Config{
		TicksPerDay: 10,
		NumDays:     1,
		RNGSeed:     1,
		Agents: []orchestrator.AgentConfig{
			{ID: "A", OpeningBalance: 1_000_000, UnsecuredCap: 500_000, Policy: submitTree("a")},
			{ID: "B", OpeningBalance: 1_000_000, UnsecuredCap: 500_000, Policy: submitTree("b")},
		},
		ConfigHash: "test-hash",
	}
	return orchestrator.New(cfg)
}

func TestHandleHealth(t *testing.T) {
	s := New(testOrchestrator(), memory.New(), "ep1")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSubmitTransactionThenGetThenTick(t *testing.T) {
	s := New(testOrchestrator(), memory.New(), "ep1")

	reqBody, err := json.Marshal(submitTransactionRequest{
		Sender: "A", Receiver: "B", Amount: 100_000, DeadlineTick: 5, Priority: 5,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	txID := created["id"]
	require.NotEmpty(t, txID)

	getReq := httptest.NewRequest(http.MethodGet, "/transactions/"+txID, nil)
	getRec := httptest.NewRecorder()
	s.Router().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	tickReq := httptest.NewRequest(http.MethodPost, "/tick", nil)
	tickRec := httptest.NewRecorder()
	s.Router().ServeHTTP(tickRec, tickReq)
	require.Equal(t, http.StatusOK, tickRec.Code)

	var result orchestrator.TickResult
	require.NoError(t, json.Unmarshal(tickRec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.NumGrossSettlements)

	latest, tick, err := s.store.Latest(context.Background(), "ep1")
	require.NoError(t, err)
	assert.Equal(t, 0, tick)
	assert.Equal(t, "test-hash", latest.ConfigHash)
}

func TestGetAgentUnknownReturnsNotFound(t *testing.T) {
	s := New(testOrchestrator(), memory.New(), "ep1")
	req := httptest.NewRequest(http.MethodGet, "/agents/nobody", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCheckpointsEmptyWithoutStore(t *testing.T) {
	s := New(testOrchestrator(), nil, "ep1")
	req := httptest.NewRequest(http.MethodGet, "/checkpoints", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
