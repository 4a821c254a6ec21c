package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_SucceedsOnFirstOK(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := NewHealthChecker(srv.URL, 30, time.Millisecond)
	require.NoError(t, checker.Wait(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestHealthChecker_RetriesUntilHealthy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent) // any 2xx counts
	}))
	defer srv.Close()

	checker := NewHealthChecker(srv.URL, 5, time.Millisecond)
	require.NoError(t, checker.Wait(context.Background()))
	assert.Equal(t, int32(3), hits.Load())
}

func TestHealthChecker_ExhaustsAttemptBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	checker := NewHealthChecker(srv.URL, 4, time.Millisecond)
	err := checker.Wait(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHealthTimeout)
	assert.Equal(t, int32(4), hits.Load())
}

func TestHealthChecker_UnreachableEndpoint(t *testing.T) {
	checker := NewHealthChecker("http://127.0.0.1:1/_stcore/health", 2, time.Millisecond)
	err := checker.Wait(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHealthTimeout)
}

func TestHealthChecker_ContextCancelStopsWaiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	checker := NewHealthChecker(srv.URL, 30, time.Hour)
	go cancel()

	err := checker.Wait(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHealthTimeout)
}
