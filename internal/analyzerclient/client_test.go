package analyzerclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pmdminer/internal/analyzerclient"
	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
)

func TestClient_WaitReady_SucceedsImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := analyzerclient.New(server.URL, time.Second, 2)
	require.NoError(t, client.WaitReady(context.Background(), 2*time.Second))
}

func TestClient_WaitReady_TimesOutWhenNeverReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := analyzerclient.New(server.URL, time.Second, 2)
	err := client.WaitReady(context.Background(), 300*time.Millisecond)
	require.ErrorIs(t, err, mining.ErrAnalyzerUnreachable)
}

func TestClient_Analyze_ReturnsFindingsOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analyzerclient.AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "java-basic.xml", req.RulesetPath)

		resp := analyzerclient.AnalyzeResponse{
			Findings: []mining.Finding{{File: "A.java", RuleName: "EmptyClass"}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := analyzerclient.New(server.URL, time.Second, 2)
	resp, err := client.Analyze(context.Background(), analyzerclient.AnalyzeRequest{
		RulesetPath: "java-basic.xml",
		Files:       []analyzerclient.FileInput{{Path: "A.java", Content: "class A {}"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, "EmptyClass", resp.Findings[0].RuleName)
}

func TestClient_Analyze_DoesNotRetryOnServerError(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := analyzerclient.New(server.URL, time.Second, 2)
	_, err := client.Analyze(context.Background(), analyzerclient.AnalyzeRequest{RulesetPath: "x"})

	require.ErrorIs(t, err, mining.ErrAnalyzerInternal)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_Analyze_RetriesOnTransportFailureThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			// Simulate a transient transport failure by hanging up.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(analyzerclient.AnalyzeResponse{}))
	}))
	defer server.Close()

	client := analyzerclient.New(server.URL, time.Second, 2)
	_, err := client.Analyze(context.Background(), analyzerclient.AnalyzeRequest{RulesetPath: "x"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
