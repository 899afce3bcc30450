/*
Copyright 2025 Bountybase Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// JSON-RPC error codes surfaced by the ledger node.
const (
	rpcCodeBadNonce  = -32001
	rpcCodeNotFound  = -32004
	rpcCodeBadSigned = -32005
)

var (
	// ErrConfirmTimeout means the transaction was not included within the
	// confirmation window. It does not imply failure: the transaction may
	// still be mined later, so callers must reconcile against chain state
	// before deciding on retry vs. acceptance.
	ErrConfirmTimeout = errors.New("transaction confirmation timed out")

	// ErrBadNonce means the node rejected the transaction before inclusion
	// because its nonce did not match the account's expected nonce. The
	// signer must resync before the next attempt.
	ErrBadNonce = errors.New("transaction nonce out of sequence")

	// ErrNotFound means the node does not know the requested entity, such as
	// a transaction hash or account.
	ErrNotFound = errors.New("not found on chain")

	// ErrBadSignature means the node rejected the transaction's signature or
	// encoding before inclusion. Resubmitting the same bytes cannot succeed.
	ErrBadSignature = errors.New("transaction signature rejected")
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return e.Message
}

// Client is a thin JSON-RPC client for a reward-ledger node.
type Client struct {
	nodeURL      string
	contract     string
	httpClient   *http.Client
	pollInterval time.Duration
}

// ClientOptions configure confirmation polling.
type ClientOptions struct {
	RequestTimeout time.Duration
	PollInterval   time.Duration
}

// NewClient creates a chain client for the node at nodeURL, targeting the
// ledger contract at the given address.
func NewClient(nodeURL, contractAddress string, opts ClientOptions) *Client {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Client{
		nodeURL:      nodeURL,
		contract:     contractAddress,
		httpClient:   &http.Client{Timeout: opts.RequestTimeout},
		pollInterval: opts.PollInterval,
	}
}

// ContractAddress returns the ledger contract address this client targets.
func (c *Client) ContractAddress() string {
	return c.contract
}

func (c *Client) call(ctx context.Context, method string, params []any, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return errors.Wrap(err, "failed to marshal rpc request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create rpc request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "rpc request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected rpc status code: %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return errors.Wrap(err, "failed to decode rpc response")
	}
	if rpcResp.Error != nil {
		switch rpcResp.Error.Code {
		case rpcCodeBadNonce:
			return errors.Wrap(ErrBadNonce, rpcResp.Error.Message)
		case rpcCodeNotFound:
			return errors.Wrap(ErrNotFound, rpcResp.Error.Message)
		case rpcCodeBadSigned:
			return errors.Wrap(ErrBadSignature, rpcResp.Error.Message)
		default:
			return errors.Wrapf(rpcResp.Error, "rpc error (code %d)", rpcResp.Error.Code)
		}
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return errors.Wrap(err, "failed to unmarshal rpc result")
		}
	}
	return nil
}

// Submit sends a signed transaction to the node and returns its hash. The
// node accepts it into the mempool; inclusion is observed via WaitForReceipt.
func (c *Client) Submit(ctx context.Context, tx *SignedTransaction) (string, error) {
	var result struct {
		Hash string `json:"hash"`
	}
	if err := c.call(ctx, "ledger_sendTransaction", []any{tx}, &result); err != nil {
		return "", err
	}
	return result.Hash, nil
}

// GetReceipt fetches the receipt for a transaction hash, or nil if the
// transaction has not been included yet.
func (c *Client) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var receipt *Receipt
	if err := c.call(ctx, "ledger_getReceipt", []any{txHash}, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// WaitForReceipt polls for a transaction's receipt until the context expires.
// A nil receipt at every poll ends in ErrConfirmTimeout; the transaction may
// still be included later, so the caller must re-query chain state before
// treating a timeout as failure.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.GetReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, ErrConfirmTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ErrConfirmTimeout
		case <-ticker.C:
		}
	}
}

// AccountNonce returns the chain-observed next nonce for an account.
func (c *Client) AccountNonce(ctx context.Context, address string) (uint64, error) {
	var nonce uint64
	if err := c.call(ctx, "ledger_getNonce", []any{address}, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

type contractCall struct {
	Contract string      `json:"contract"`
	Method   string      `json:"method"`
	Params   interface{} `json:"params"`
}

// IsRewarded queries the contract's rewarded-set for a (campaign, submission)
// pair. Read-only, no transaction is produced.
func (c *Client) IsRewarded(ctx context.Context, campaignID, submissionID string) (bool, error) {
	var rewarded bool
	call := contractCall{
		Contract: c.contract,
		Method:   MethodIsRewarded,
		Params:   map[string]string{"campaign_id": campaignID, "submission_id": submissionID},
	}
	if err := c.call(ctx, "ledger_call", []any{call}, &rewarded); err != nil {
		return false, err
	}
	return rewarded, nil
}

// PoolBalance queries the remaining balance of a campaign's reward pool.
func (c *Client) PoolBalance(ctx context.Context, campaignID string) (int64, error) {
	var balance int64
	call := contractCall{
		Contract: c.contract,
		Method:   MethodPoolBalance,
		Params:   map[string]string{"campaign_id": campaignID},
	}
	if err := c.call(ctx, "ledger_call", []any{call}, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}
