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

// Package chain talks JSON-RPC to a reward-ledger node: it submits signed
// contract transactions, polls for confirmation, and serves read-only
// contract queries. It also owns the platform signer, the only component
// permitted to produce transactions on the platform's behalf.
package chain

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/mr-tron/base58"
)

// Contract methods understood by the ledger node.
const (
	MethodCreatePool  = "create_pool"
	MethodFundPool    = "fund_pool"
	MethodDistribute  = "distribute"
	MethodWithdraw    = "withdraw"
	MethodPoolBalance = "pool_balance"
	MethodIsRewarded  = "is_rewarded"
)

// Receipt statuses reported by the node once a transaction is included.
const (
	ReceiptConfirmed = "confirmed"
	ReceiptReverted  = "reverted"
)

// Transaction is an unsigned contract call. Field order is fixed; the JSON
// encoding of this struct is the byte string that gets signed.
type Transaction struct {
	From     string          `json:"from"`
	Nonce    uint64          `json:"nonce"`
	Contract string          `json:"contract"`
	Method   string          `json:"method"`
	Params   json.RawMessage `json:"params"`
}

// SigningBytes returns the canonical byte encoding of the transaction that
// the signature covers.
func (t *Transaction) SigningBytes() ([]byte, error) {
	return json.Marshal(t)
}

// SignedTransaction carries the transaction, its base58 ed25519 signature,
// and the transaction hash derived from both.
type SignedTransaction struct {
	Transaction
	Signature string `json:"signature"`
	Hash      string `json:"hash"`
}

// ComputeHash derives the transaction hash: base58(sha256(signing bytes ||
// signature)). The nonce makes every retried submission hash differently.
func ComputeHash(signingBytes []byte, signature []byte) string {
	h := sha256.New()
	h.Write(signingBytes)
	h.Write(signature)
	return base58.Encode(h.Sum(nil))
}

// Receipt is the inclusion record for a submitted transaction.
type Receipt struct {
	TxHash       string `json:"tx_hash"`
	Status       string `json:"status"`
	RevertReason string `json:"revert_reason,omitempty"`
	BlockHeight  uint64 `json:"block_height"`
}

// Confirmed reports whether the transaction was durably included and applied.
func (r *Receipt) Confirmed() bool {
	return r.Status == ReceiptConfirmed
}

// DistributeParams are the arguments of a distribute contract call.
type DistributeParams struct {
	CampaignID   string `json:"campaign_id"`
	SubmissionID string `json:"submission_id"`
	Recipient    string `json:"recipient"`
	Amount       int64  `json:"amount"`
}

// CreatePoolParams are the arguments of a create_pool contract call.
type CreatePoolParams struct {
	CampaignID   string `json:"campaign_id"`
	OwnerAddress string `json:"owner_address"`
}

// FundPoolParams are the arguments of a fund_pool contract call.
type FundPoolParams struct {
	CampaignID string `json:"campaign_id"`
	Amount     int64  `json:"amount"`
}

// WithdrawParams are the arguments of a withdraw contract call.
type WithdrawParams struct {
	CampaignID string `json:"campaign_id"`
	Amount     int64  `json:"amount"`
}
