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

// Package simnode is an in-process reward-ledger node speaking the same
// JSON-RPC surface as a production node. It executes the contract state
// machine from the contract package, enforces account nonces and ed25519
// signatures, and produces receipts. It backs the chain client tests, the
// service tests, and the `payout simnode` development command.
package simnode

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/bountybase/payout/chain"
	"github.com/bountybase/payout/contract"
)

const (
	codeBadNonce   = -32001
	codeBadRequest = -32600
	codeBadSigned  = -32005
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int               `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// Node is a simulated ledger node. ReceiptDelay can be raised by tests to
// exercise confirmation timeouts; zero means receipts appear immediately
// after submission.
type Node struct {
	mu           sync.Mutex
	ledger       *contract.Ledger
	contractAddr string
	nonces       map[string]uint64
	receipts     map[string]*chain.Receipt
	height       uint64
	ReceiptDelay time.Duration
}

// New creates a node hosting a ledger contract instance whose registered
// platform signer is signerAddress.
func New(contractAddress, signerAddress string) *Node {
	return &Node{
		ledger:       contract.NewLedger(signerAddress),
		contractAddr: contractAddress,
		nonces:       make(map[string]uint64),
		receipts:     make(map[string]*chain.Receipt),
	}
}

// Ledger exposes the underlying contract state, letting tests and the dev
// command seed pools without going through signed transactions.
func (n *Node) Ledger() *contract.Ledger {
	return n.ledger
}

// ServeHTTP handles JSON-RPC requests.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "malformed request"})
		return
	}

	switch req.Method {
	case "ledger_sendTransaction":
		n.handleSend(w, req)
	case "ledger_getReceipt":
		n.handleGetReceipt(w, req)
	case "ledger_getNonce":
		n.handleGetNonce(w, req)
	case "ledger_call":
		n.handleCall(w, req)
	default:
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "unknown method: " + req.Method})
	}
}

func (n *Node) reply(w http.ResponseWriter, id int, result interface{}, rpcErr *rpcError) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr}); err != nil {
		logrus.Errorf("simnode: failed to encode response: %v", err)
	}
}

func (n *Node) handleSend(w http.ResponseWriter, req rpcRequest) {
	if len(req.Params) != 1 {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "expected one param"})
		return
	}
	var tx chain.SignedTransaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "malformed transaction"})
		return
	}

	if rpcErr := n.verify(&tx); rpcErr != nil {
		n.reply(w, req.ID, nil, rpcErr)
		return
	}

	n.mu.Lock()
	if tx.Nonce != n.nonces[tx.From] {
		expected := n.nonces[tx.From]
		n.mu.Unlock()
		n.reply(w, req.ID, nil, &rpcError{
			Code:    codeBadNonce,
			Message: fmt.Sprintf("invalid nonce: expected %d, got %d", expected, tx.Nonce),
		})
		return
	}
	n.nonces[tx.From]++
	delay := n.ReceiptDelay
	n.mu.Unlock()

	if delay > 0 {
		go func() {
			time.Sleep(delay)
			n.include(&tx)
		}()
	} else {
		n.include(&tx)
	}

	n.reply(w, req.ID, map[string]string{"hash": tx.Hash}, nil)
}

// include executes the contract call and records a receipt.
func (n *Node) include(tx *chain.SignedTransaction) {
	err := n.execute(tx)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.height++
	receipt := &chain.Receipt{TxHash: tx.Hash, Status: chain.ReceiptConfirmed, BlockHeight: n.height}
	if err != nil {
		receipt.Status = chain.ReceiptReverted
		receipt.RevertReason = contract.ReasonOf(err)
		if receipt.RevertReason == "" {
			receipt.RevertReason = err.Error()
		}
	}
	n.receipts[tx.Hash] = receipt
}

func (n *Node) execute(tx *chain.SignedTransaction) error {
	switch tx.Method {
	case chain.MethodCreatePool:
		var p chain.CreatePoolParams
		if err := json.Unmarshal(tx.Params, &p); err != nil {
			return err
		}
		return n.ledger.CreatePool(p.CampaignID, p.OwnerAddress)
	case chain.MethodFundPool:
		var p chain.FundPoolParams
		if err := json.Unmarshal(tx.Params, &p); err != nil {
			return err
		}
		return n.ledger.FundPool(p.CampaignID, p.Amount)
	case chain.MethodDistribute:
		var p chain.DistributeParams
		if err := json.Unmarshal(tx.Params, &p); err != nil {
			return err
		}
		_, err := n.ledger.Distribute(tx.From, p.CampaignID, p.SubmissionID, p.Recipient, p.Amount, tx.Hash)
		return err
	case chain.MethodWithdraw:
		var p chain.WithdrawParams
		if err := json.Unmarshal(tx.Params, &p); err != nil {
			return err
		}
		return n.ledger.Withdraw(tx.From, p.CampaignID, p.Amount)
	default:
		return &contract.RevertError{Reason: "UnknownMethod", Detail: tx.Method}
	}
}

func (n *Node) verify(tx *chain.SignedTransaction) *rpcError {
	pub, err := base58.Decode(tx.From)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return &rpcError{Code: codeBadSigned, Message: "malformed sender address"}
	}
	sig, err := base58.Decode(tx.Signature)
	if err != nil {
		return &rpcError{Code: codeBadSigned, Message: "malformed signature"}
	}
	signingBytes, err := tx.Transaction.SigningBytes()
	if err != nil {
		return &rpcError{Code: codeBadSigned, Message: "unencodable transaction"}
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), signingBytes, sig) {
		return &rpcError{Code: codeBadSigned, Message: "signature verification failed"}
	}
	if tx.Hash != chain.ComputeHash(signingBytes, sig) {
		return &rpcError{Code: codeBadSigned, Message: "transaction hash mismatch"}
	}
	return nil
}

func (n *Node) handleGetReceipt(w http.ResponseWriter, req rpcRequest) {
	if len(req.Params) != 1 {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "expected one param"})
		return
	}
	var hash string
	if err := json.Unmarshal(req.Params[0], &hash); err != nil {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "malformed hash"})
		return
	}

	n.mu.Lock()
	receipt := n.receipts[hash]
	n.mu.Unlock()

	// A missing receipt is a null result, not an error: the transaction may
	// simply not be included yet.
	n.reply(w, req.ID, receipt, nil)
}

func (n *Node) handleGetNonce(w http.ResponseWriter, req rpcRequest) {
	if len(req.Params) != 1 {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "expected one param"})
		return
	}
	var address string
	if err := json.Unmarshal(req.Params[0], &address); err != nil {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "malformed address"})
		return
	}

	n.mu.Lock()
	nonce := n.nonces[address]
	n.mu.Unlock()
	n.reply(w, req.ID, nonce, nil)
}

type callParams struct {
	Contract string          `json:"contract"`
	Method   string          `json:"method"`
	Params   json.RawMessage `json:"params"`
}

func (n *Node) handleCall(w http.ResponseWriter, req rpcRequest) {
	if len(req.Params) != 1 {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "expected one param"})
		return
	}
	var call callParams
	if err := json.Unmarshal(req.Params[0], &call); err != nil {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "malformed call"})
		return
	}

	var args struct {
		CampaignID   string `json:"campaign_id"`
		SubmissionID string `json:"submission_id"`
	}
	if err := json.Unmarshal(call.Params, &args); err != nil {
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "malformed call params"})
		return
	}

	switch call.Method {
	case chain.MethodPoolBalance:
		balance, err := n.ledger.PoolBalance(args.CampaignID)
		if err != nil {
			n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: err.Error()})
			return
		}
		n.reply(w, req.ID, balance, nil)
	case chain.MethodIsRewarded:
		n.reply(w, req.ID, n.ledger.IsRewarded(args.CampaignID, args.SubmissionID), nil)
	default:
		n.reply(w, req.ID, nil, &rpcError{Code: codeBadRequest, Message: "unknown contract method: " + call.Method})
	}
}
