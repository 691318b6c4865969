// Package remote is the JSON-RPC client side of the engagement API. It lets a
// Voter run in a different process from the vote ledger.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/amacivic/engagement/internal/api"
	"github.com/amacivic/engagement/internal/engagement"
	"github.com/amacivic/engagement/pkg/config"
	"github.com/amacivic/engagement/pkg/logging"
	"github.com/amacivic/engagement/pkg/telemetry"
)

// Client implements engagement.Remote over HTTP
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	nextID     atomic.Int64
	logger     *zap.Logger
}

// New creates a client for the server at cfg.URL, authenticating with cfg.Token
func New(cfg *config.RemoteConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote_url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := logging.WithComponent("remote-client")
	logger.Info("Remote client initialized", zap.String("url", cfg.URL))

	return &Client{
		url:        cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// SubmitVote implements engagement.Remote
func (c *Client) SubmitVote(ctx context.Context, targetID string, targetType engagement.TargetType, vt engagement.VoteType) (*engagement.VoteTransition, error) {
	ctx, span := telemetry.StartSpan(ctx, "remote.submit_vote")
	defer span.End()
	span.SetAttributes(attribute.String("target_id", targetID))

	var res engagement.VoteResult
	err := c.call(ctx, "engagement.vote", map[string]string{
		"target_id":   targetID,
		"target_type": string(targetType),
		"vote_type":   string(vt),
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Transition == nil {
		return nil, &engagement.Error{Code: engagement.CodeRemoteWriteFailure, Op: "submit_vote", TargetID: targetID, Err: fmt.Errorf("response has no transition")}
	}
	if res.CountsStale {
		c.logger.Debug("Vote stored but server recount failed", zap.String("target_id", targetID))
	}
	return res.Transition, nil
}

// FetchCounts implements engagement.Remote
func (c *Client) FetchCounts(ctx context.Context, targetID string, targetType engagement.TargetType) (engagement.Counters, error) {
	ctx, span := telemetry.StartSpan(ctx, "remote.fetch_counts")
	defer span.End()

	var counters engagement.Counters
	err := c.call(ctx, "engagement.get_counts", map[string]string{
		"target_id":   targetID,
		"target_type": string(targetType),
	}, &counters)
	if err != nil {
		// the caller already knows a read failed; keep the server's class only
		// when it is more specific
		if engagement.CodeOf(err) == engagement.CodeRemoteWriteFailure {
			return engagement.Counters{}, &engagement.Error{Code: engagement.CodeRemoteReadFailure, Op: "fetch_counts", TargetID: targetID, Err: err}
		}
		return engagement.Counters{}, err
	}
	return counters, nil
}

// call performs one JSON-RPC round trip. Transport failures and unknown
// server errors surface as remote write failures.
func (c *Client) call(ctx context.Context, method string, params interface{}, dest interface{}) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	body, err := json.Marshal(api.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &engagement.Error{Code: engagement.CodeRemoteWriteFailure, Op: method, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &engagement.Error{Code: engagement.CodeRemoteWriteFailure, Op: method, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &engagement.Error{Code: engagement.CodeRemoteWriteFailure, Op: method, Err: fmt.Errorf("request failed: %s", resp.Status)}
	}

	var rpcResp struct {
		Result json.RawMessage   `json:"result"`
		Error  *api.JSONRPCError `json:"error"`
	}
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return &engagement.Error{Code: engagement.CodeRemoteWriteFailure, Op: method, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if rpcResp.Error != nil {
		c.logger.Debug("Remote call failed",
			zap.String("method", method),
			zap.Int("code", rpcResp.Error.Code),
			zap.String("message", rpcResp.Error.Message))
		return &engagement.Error{Code: api.EngagementCode(rpcResp.Error.Code), Op: method, Err: rpcResp.Error}
	}

	if err := json.Unmarshal(rpcResp.Result, dest); err != nil {
		return &engagement.Error{Code: engagement.CodeRemoteWriteFailure, Op: method, Err: fmt.Errorf("failed to unmarshal result: %w", err)}
	}
	return nil
}
