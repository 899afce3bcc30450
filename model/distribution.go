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

package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Distribution states. A distribution moves forward through
// PENDING -> SUBMITTED -> CONFIRMED, or diverts through
// PENDING -> SUBMITTED -> FAILED -> MANUAL_FALLBACK. CONFIRMED and
// MANUAL_FALLBACK are terminal; nothing transitions out of CONFIRMED.
const (
	StatusPending        = "PENDING"
	StatusSubmitted      = "SUBMITTED"
	StatusConfirmed      = "CONFIRMED"
	StatusFailed         = "FAILED"
	StatusManualFallback = "MANUAL_FALLBACK"
)

// Distribution is the local settlement-ledger record of a single payout
// attempt for one (campaign, submission) pair. It mirrors on-chain events for
// audit and display; the ledger contract's rewarded-set remains authoritative.
type Distribution struct {
	ID             int64                  `json:"-"`
	DistributionID string                 `json:"id"`
	CampaignID     string                 `json:"campaign_id"`
	SubmissionID   string                 `json:"submission_id"`
	Recipient      string                 `json:"recipient"`
	AmountFiat     decimal.Decimal        `json:"amount_fiat"`
	AmountNative   int64                  `json:"amount_native"`
	Status         string                 `json:"status"`
	TxHash         string                 `json:"tx_hash,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	Retries        int                    `json:"retries"`
	Hash           string                 `json:"hash"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

func (d *Distribution) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// IsTerminal reports whether the distribution is in a state that no automated
// transition leaves.
func (d *Distribution) IsTerminal() bool {
	return d.Status == StatusConfirmed || d.Status == StatusManualFallback
}

// validTransitions encodes the distribution state machine.
var validTransitions = map[string][]string{
	StatusPending:   {StatusSubmitted, StatusConfirmed, StatusFailed},
	StatusSubmitted: {StatusConfirmed, StatusFailed, StatusSubmitted},
	StatusFailed:    {StatusManualFallback, StatusSubmitted},
}

// CanTransition reports whether moving from the distribution's current status
// to the target status is a legal state-machine transition.
func (d *Distribution) CanTransition(target string) bool {
	for _, next := range validTransitions[d.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// Validate checks the payout request fields that can be rejected locally
// before any network or chain call is made.
func (d *Distribution) Validate() error {
	if d.CampaignID == "" {
		return errors.New("campaign id is required")
	}
	if d.SubmissionID == "" {
		return errors.New("submission id is required")
	}
	if !IsValidAddress(d.Recipient) {
		return errors.New("recipient is not a valid chain address")
	}
	if !d.AmountFiat.IsPositive() {
		return errors.New("amount must be positive")
	}
	return nil
}

// DistributionResult outcomes returned to the bug-approval workflow. The
// caller must only present a bounty as paid on ResultConfirmed or
// ResultAlreadyDistributed.
const (
	ResultConfirmed          = "CONFIRMED"
	ResultAlreadyDistributed = "ALREADY_DISTRIBUTED"
	ResultManualFallback     = "MANUAL_FALLBACK"
	ResultServiceUnavailable = "SERVICE_UNAVAILABLE"
	ResultInvalidInput       = "INVALID_INPUT"
)

// DistributionResult is the outcome of a DistributeReward call.
type DistributionResult struct {
	Outcome        string `json:"outcome"`
	TxHash         string `json:"tx_hash,omitempty"`
	Reason         string `json:"reason,omitempty"`
	DistributionID string `json:"distribution_id,omitempty"`
}

// Paid reports whether the result means funds have durably moved to the
// hunter's wallet.
func (r *DistributionResult) Paid() bool {
	return r.Outcome == ResultConfirmed || r.Outcome == ResultAlreadyDistributed
}
