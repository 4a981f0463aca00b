package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client is a JSON-RPC client for a zcashd-compatible endpoint. It
// retries failed calls a fixed number of times and rate-limits requests
// over a sliding window so hosted endpoints do not return 429s.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	mu         sync.Mutex
	requestLog []time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Call invokes method with params and decodes the result into out.
// Transport errors, HTTP 429 and RPC-level errors are all retried.
func (c *Client) Call(ctx context.Context, method string, params []any, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return err
		}
		err := c.post(ctx, method, params, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < c.cfg.Retries-1 {
			c.logger.Debug("rpc call failed, retrying",
				"method", method,
				"attempt", attempt+1,
				"delay", c.cfg.RetryDelay.String(),
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
	return fmt.Errorf("rpc %s failed after %d attempts: %w", method, c.cfg.Retries, lastErr)
}

// throttle blocks briefly when the request budget for the sliding
// window is exhausted. A non-positive limit disables throttling.
func (c *Client) throttle(ctx context.Context) error {
	if c.cfg.RequestLimit <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	for len(c.requestLog) > 0 && now.Sub(c.requestLog[0]) > c.cfg.RequestWindow {
		c.requestLog = c.requestLog[1:]
	}
	wait := len(c.requestLog) >= c.cfg.RequestLimit
	c.mu.Unlock()

	if wait {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	c.mu.Lock()
	c.requestLog = append(c.requestLog, time.Now())
	c.mu.Unlock()
	return nil
}

func (c *Client) post(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 0})
	if err != nil {
		return fmt.Errorf("rpc encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "identity")
	if c.cfg.RPCAPIKey != "" {
		req.Header.Set("x-api-key", c.cfg.RPCAPIKey)
	}
	if c.cfg.RPCUserPwd != "" {
		user, pass, _ := strings.Cut(c.cfg.RPCUserPwd, ":")
		req.SetBasicAuth(user, pass)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc post: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("rpc read: %w", err)
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rpc rate limited: %s", strings.TrimSpace(string(raw)))
	}

	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("rpc decode (status %d): %w", res.StatusCode, err)
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return fmt.Errorf("rpc error: %s", resp.Error)
	}
	if resp.Result == nil {
		return fmt.Errorf("malformed rpc response: %s", strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("rpc result decode: %w", err)
	}
	return nil
}

// HeaderInfo is the getblockheader result. Commitment fields that only
// exist after a given network upgrade are empty for earlier blocks.
type HeaderInfo struct {
	Hash              string `json:"hash"`
	Height            uint64 `json:"height"`
	Version           int64  `json:"version"`
	MerkleRoot        string `json:"merkleroot"`
	FinalSaplingRoot  string `json:"finalsaplingroot"`
	BlockCommitments  string `json:"blockcommitments"`
	Time              uint64 `json:"time"`
	MedianTime        uint64 `json:"mediantime"`
	Bits              string `json:"bits"`
	Nonce             string `json:"nonce"`
	Solution          string `json:"solution"`
	PreviousBlockHash string `json:"previousblockhash"`
	NextBlockHash     string `json:"nextblockhash"`
}

// GetBlockCount returns the height of the current chain tip.
func (c *Client) GetBlockCount(ctx context.Context) (uint64, error) {
	var count uint64
	if err := c.Call(ctx, "getblockcount", nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *Client) GetBlockHash(ctx context.Context, height uint64) (string, error) {
	var hash string
	if err := c.Call(ctx, "getblockhash", []any{height}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

func (c *Client) GetBlockHeader(ctx context.Context, blockHash string) (*HeaderInfo, error) {
	var h HeaderInfo
	if err := c.Call(ctx, "getblockheader", []any{blockHash}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
