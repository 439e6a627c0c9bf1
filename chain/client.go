package chain

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/KaviraWallet/kavira/codec"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

const (
	MOD_NAME = "chain"

	pollPath       = "/api/v1/poll"
	requestTimeout = 10 * time.Second
)

type pollRequest struct {
	RequestKeys []string `json:"requestKeys"`
}

type commandOutcome struct {
	Status string                 `json:"status"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

type commandResult struct {
	RequestKey string         `json:"reqKey"`
	Result     commandOutcome `json:"result"`
	Gas        float64        `json:"gas"`
	TxID       *int64         `json:"txId,omitempty"`
}

// Client queries a chain node's poll endpoint for submitted command results.
// It implements transaction.ResultSource: a hash not yet known on chain
// yields (nil, nil) so the caller keeps polling.
type Client struct {
	log       tplog.Logger
	marshaler codec.Marshaler
	httpc     *http.Client

	mu   sync.RWMutex
	host string
}

func NewClient(level tplogcmm.LogLevel, log tplog.Logger, codecType codec.CodecType, host string) *Client {
	cLog := tplog.CreateModuleLogger(level, MOD_NAME, log)

	return &Client{
		log:       cLog,
		marshaler: codec.CreateMarshaler(codecType),
		httpc:     &http.Client{Timeout: requestTimeout},
		host:      host,
	}
}

// SetHost repoints the client at another chain node, typically after a
// network switch.
func (c *Client) SetHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.host = host
}

func (c *Client) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.host
}

func (c *Client) FetchResult(ctx context.Context, hash string) (*wltypes.TxResult, error) {
	host := c.Host()
	if host == "" {
		return nil, werror.New(werror.ErrCode_NetworkUnavailable, "no chain host configured", werror.Severity_Medium, true)
	}

	body, err := c.marshaler.Marshal(&pollRequest{RequestKeys: []string{hash}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+pollPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, werror.NewWithCause(werror.ErrCode_NetworkError, "poll request failed", werror.Severity_Medium, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, werror.New(werror.ErrCode_NetworkError, fmt.Sprintf("poll returned http %d", resp.StatusCode), werror.Severity_Medium, true)
	}

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, werror.NewWithCause(werror.ErrCode_NetworkError, "read poll response failed", werror.Severity_Medium, true, err)
	}

	results := make(map[string]commandResult)
	if err = c.marshaler.Unmarshal(raw, &results); err != nil {
		return nil, werror.NewWithCause(werror.ErrCode_NetworkError, "decode poll response failed", werror.Severity_Medium, true, err)
	}

	cmdRes, ok := results[hash]
	if !ok {
		// still in the mempool or unknown, caller keeps polling
		return nil, nil
	}

	status := wltypes.TxStatus_Failure
	if cmdRes.Result.Status == "success" {
		status = wltypes.TxStatus_Success
	}

	data := cmdRes.Result.Data
	if data == nil {
		data = make(map[string]interface{})
	}
	data["gas"] = cmdRes.Gas

	return &wltypes.TxResult{Status: status, Data: data}, nil
}
