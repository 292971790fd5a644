package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := error(&Error{Op: OpResolve, Kind: KindOutOfResources, Err: errors.New("out of gas")})
	assert.ErrorIs(t, err, ErrOutOfResources)
	assert.NotErrorIs(t, err, ErrReverted)
	assert.Equal(t, KindOutOfResources, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		code   string
		want   Kind
	}{
		{http.StatusConflict, "", KindReverted},
		{http.StatusUnprocessableEntity, "", KindReverted},
		{http.StatusBadRequest, "reverted", KindReverted},
		{http.StatusPaymentRequired, "", KindOutOfResources},
		{http.StatusBadRequest, "out_of_gas", KindOutOfResources},
		{http.StatusInternalServerError, "insufficient_funds", KindOutOfResources},
		{http.StatusServiceUnavailable, "", KindUnavailable},
		{http.StatusTooManyRequests, "", KindUnavailable},
		{http.StatusBadRequest, "", KindReverted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.status, tt.code), "status=%d code=%q", tt.status, tt.code)
	}
}

func TestHTTPClient_CreateAndResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/grievances":
			var req createRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "water", req.Category)
			assert.Equal(t, "lh", req.LocationHash)
			assert.Equal(t, "dh", req.DescriptionHash)
			_ = json.NewEncoder(w).Encode(createResponse{LedgerID: "L-1"})
		case "/grievances/L-1/resolve":
			_ = json.NewEncoder(w).Encode(Receipt{TxHash: "0xabc", BlockNumber: 42})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret", 5*time.Second)
	id, err := c.CreateGrievance(context.Background(), "water", "lh", "dh")
	require.NoError(t, err)
	assert.Equal(t, "L-1", id)

	receipt, err := c.ResolveGrievance(context.Background(), "L-1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.TxHash)
	assert.Equal(t, uint64(42), receipt.BlockNumber)
}

func TestHTTPClient_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(createResponse{LedgerID: "L-2"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	id, err := c.CreateGrievance(context.Background(), "water", "", "")
	require.NoError(t, err)
	assert.Equal(t, "L-2", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPClient_RevertIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "reverted", Message: "already resolved"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 5*time.Second)
	_, err := c.ResolveGrievance(context.Background(), "L-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReverted)
	assert.Contains(t, err.Error(), "already resolved")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_UnavailableAfterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 300*time.Millisecond)
	_, err := c.CreateGrievance(context.Background(), "water", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, OpCreate, le.Op)
}

func TestMemoryLedger_ChainAndResolve(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	a, err := l.CreateGrievance(ctx, "water", "lh", "dh")
	require.NoError(t, err)
	b, err := l.CreateGrievance(ctx, "roads", "", "dh2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	receipt, err := l.ResolveGrievance(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), receipt.BlockNumber)
	assert.True(t, l.IsResolved(a))
	assert.False(t, l.IsResolved(b))

	_, err = l.ResolveGrievance(ctx, a)
	assert.ErrorIs(t, err, ErrReverted)
	_, err = l.ResolveGrievance(ctx, "unknown")
	assert.ErrorIs(t, err, ErrReverted)

	require.NoError(t, l.Verify())
	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, entries[0].Hash, entries[1].PrevHash)
}

func TestMemoryLedger_VerifyDetectsTampering(t *testing.T) {
	l := NewMemoryLedger()
	_, err := l.CreateGrievance(context.Background(), "water", "lh", "dh")
	require.NoError(t, err)
	_, err = l.CreateGrievance(context.Background(), "roads", "lh", "dh")
	require.NoError(t, err)

	l.entries[0].Category = "sewage"
	assert.Error(t, l.Verify())
}
