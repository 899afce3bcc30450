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

// Package contract implements the reward-ledger contract: per-campaign reward
// pools, a rewarded-set of (campaign, submission) pairs that have been paid,
// and the distribution rules enforced by the chain. The same state machine
// runs inside the simulated ledger node used by tests and local development,
// and its revert reasons are the ones the chain client decodes from receipts.
package contract

import (
	"fmt"
	"sync"
	"time"
)

// Revert reasons carried in transaction receipts. The off-chain service keys
// its retry decisions off these strings, so they are part of the contract ABI.
const (
	ReasonAlreadyRewarded  = "AlreadyRewarded"
	ReasonInsufficientPool = "InsufficientPool"
	ReasonUnauthorized     = "Unauthorized"
	ReasonPoolNotFound     = "PoolNotFound"
	ReasonPoolExists       = "PoolExists"
	ReasonInvalidAmount    = "InvalidAmount"
)

// RevertError is a contract-level failure. Reason is one of the Reason*
// constants above and is what ends up in the receipt's revert reason.
type RevertError struct {
	Reason string
	Detail string
}

func (e *RevertError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func revert(reason, format string, args ...interface{}) error {
	return &RevertError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the revert reason from an error, or "" if the error is
// not a contract revert.
func ReasonOf(err error) string {
	if re, ok := err.(*RevertError); ok {
		return re.Reason
	}
	return ""
}

// Pool is a reward pool held by the contract for one bounty campaign.
type Pool struct {
	CampaignID   string
	OwnerAddress string
	Balance      int64
	CreatedAt    time.Time
}

// DistributionEvent is emitted on every successful distribute call.
type DistributionEvent struct {
	CampaignID   string
	SubmissionID string
	Recipient    string
	Amount       int64
	TxHash       string
}

// Ledger holds the contract state: pools keyed by campaign, the rewarded-set,
// and the single platform signer address authorized to distribute. All methods
// are safe for concurrent use; each call is atomic with respect to the state.
type Ledger struct {
	mu       sync.Mutex
	signer   string
	pools    map[string]*Pool
	rewarded map[string]int64 // (campaign, submission) -> amount paid
	events   []DistributionEvent
}

// NewLedger creates a ledger contract instance with the given platform signer
// address registered as the only address allowed to call Distribute.
func NewLedger(signerAddress string) *Ledger {
	return &Ledger{
		signer:   signerAddress,
		pools:    make(map[string]*Pool),
		rewarded: make(map[string]int64),
	}
}

func rewardKey(campaignID, submissionID string) string {
	return campaignID + "/" + submissionID
}

// CreatePool registers a new empty pool for a campaign. It reverts with
// PoolExists if the campaign is already registered.
func (l *Ledger) CreatePool(campaignID, ownerAddress string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.pools[campaignID]; ok {
		return revert(ReasonPoolExists, "campaign %s already registered", campaignID)
	}
	l.pools[campaignID] = &Pool{
		CampaignID:   campaignID,
		OwnerAddress: ownerAddress,
		CreatedAt:    time.Now(),
	}
	return nil
}

// FundPool increases a pool's balance by the transferred value. Callable by
// anyone; reverts with PoolNotFound if the campaign has no pool.
func (l *Ledger) FundPool(campaignID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount <= 0 {
		return revert(ReasonInvalidAmount, "fund amount must be positive")
	}
	pool, ok := l.pools[campaignID]
	if !ok {
		return revert(ReasonPoolNotFound, "campaign %s has no pool", campaignID)
	}
	pool.Balance += amount
	return nil
}

// Distribute pays amount from the campaign's pool to recipient for a given
// submission. Only the registered platform signer may call it. The
// rewarded-set membership check is the authoritative idempotency guard: a
// second call for the same (campaign, submission) reverts with
// AlreadyRewarded and no funds move twice.
func (l *Ledger) Distribute(caller, campaignID, submissionID, recipient string, amount int64, txHash string) (*DistributionEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.signer {
		return nil, revert(ReasonUnauthorized, "caller %s is not the platform signer", caller)
	}
	if amount <= 0 {
		return nil, revert(ReasonInvalidAmount, "distribution amount must be positive")
	}
	pool, ok := l.pools[campaignID]
	if !ok {
		return nil, revert(ReasonPoolNotFound, "campaign %s has no pool", campaignID)
	}
	key := rewardKey(campaignID, submissionID)
	if _, done := l.rewarded[key]; done {
		return nil, revert(ReasonAlreadyRewarded, "submission %s already rewarded", submissionID)
	}
	if amount > pool.Balance {
		return nil, revert(ReasonInsufficientPool, "amount %d exceeds pool balance %d", amount, pool.Balance)
	}

	pool.Balance -= amount
	l.rewarded[key] = amount
	event := DistributionEvent{
		CampaignID:   campaignID,
		SubmissionID: submissionID,
		Recipient:    recipient,
		Amount:       amount,
		TxHash:       txHash,
	}
	l.events = append(l.events, event)
	return &event, nil
}

// Withdraw returns amount from the pool to its owner. Only the pool's owner
// may call it; reverts with InsufficientPool if amount exceeds the balance.
func (l *Ledger) Withdraw(caller, campaignID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pool, ok := l.pools[campaignID]
	if !ok {
		return revert(ReasonPoolNotFound, "campaign %s has no pool", campaignID)
	}
	if caller != pool.OwnerAddress {
		return revert(ReasonUnauthorized, "caller %s does not own pool %s", caller, campaignID)
	}
	if amount <= 0 {
		return revert(ReasonInvalidAmount, "withdraw amount must be positive")
	}
	if amount > pool.Balance {
		return revert(ReasonInsufficientPool, "amount %d exceeds pool balance %d", amount, pool.Balance)
	}
	pool.Balance -= amount
	return nil
}

// PoolBalance returns the remaining balance for a campaign's pool. Read-only.
func (l *Ledger) PoolBalance(campaignID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pool, ok := l.pools[campaignID]
	if !ok {
		return 0, revert(ReasonPoolNotFound, "campaign %s has no pool", campaignID)
	}
	return pool.Balance, nil
}

// IsRewarded reports whether the (campaign, submission) pair is in the
// rewarded-set. Read-only, no side effects.
func (l *Ledger) IsRewarded(campaignID, submissionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.rewarded[rewardKey(campaignID, submissionID)]
	return ok
}

// GetPool returns a copy of the pool registered for a campaign.
func (l *Ledger) GetPool(campaignID string) (Pool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pool, ok := l.pools[campaignID]
	if !ok {
		return Pool{}, revert(ReasonPoolNotFound, "campaign %s has no pool", campaignID)
	}
	return *pool, nil
}

// Events returns a copy of all distribution events emitted so far.
func (l *Ledger) Events() []DistributionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DistributionEvent, len(l.events))
	copy(out, l.events)
	return out
}
