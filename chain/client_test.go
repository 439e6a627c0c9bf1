package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaviraWallet/kavira/codec"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
)

func newTestClient(t *testing.T, host string) *Client {
	testLog, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.JSONFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)

	return NewClient(tplogcmm.ErrorLevel, testLog, codec.CodecType_JSON, host)
}

func pollServer(t *testing.T, results map[string]commandResult) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pollPath, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req pollRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 1, len(req.RequestKeys))

		out := make(map[string]commandResult)
		if res, ok := results[req.RequestKeys[0]]; ok {
			out[req.RequestKeys[0]] = res
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
}

func TestFetchResultSuccess(t *testing.T) {
	srv := pollServer(t, map[string]commandResult{
		"hash-1": {RequestKey: "hash-1", Result: commandOutcome{Status: "success", Data: map[string]interface{}{"block": "b1"}}, Gas: 12},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	result, err := c.FetchResult(context.Background(), "hash-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, wltypes.TxStatus_Success, result.Status)
	assert.Equal(t, "b1", result.Data["block"])
	assert.Equal(t, float64(12), result.Data["gas"])
}

func TestFetchResultFailureStatus(t *testing.T) {
	srv := pollServer(t, map[string]commandResult{
		"hash-2": {RequestKey: "hash-2", Result: commandOutcome{Status: "failure"}},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	result, err := c.FetchResult(context.Background(), "hash-2")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, wltypes.TxStatus_Failure, result.Status)
}

func TestFetchResultUnknownHash(t *testing.T) {
	srv := pollServer(t, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	result, err := c.FetchResult(context.Background(), "hash-3")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestFetchResultHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.FetchResult(context.Background(), "hash-4")
	assert.Error(t, err)
}

func TestFetchResultNoHost(t *testing.T) {
	c := newTestClient(t, "")

	_, err := c.FetchResult(context.Background(), "hash-5")
	assert.Error(t, err)

	c.SetHost("http://localhost:0")
	assert.Equal(t, "http://localhost:0", c.Host())
}
