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

package payout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bountybase/payout/model"
)

// seedStuckDistribution inserts a non-terminal row old enough to be picked up
// by the recovery sweep.
func seedStuckDistribution(t *testing.T, h *testHarness, campaignID, submissionID, status string) *model.Distribution {
	t.Helper()

	dist := payoutRequest(campaignID, submissionID, 500)
	dist.DistributionID = model.GenerateUUIDWithSuffix("dist")
	dist.AmountNative = 500
	dist.Status = status
	dist.CreatedAt = time.Now().Add(-3 * time.Hour)
	dist.UpdatedAt = time.Now().Add(-3 * time.Hour)
	dist.AmountFiat = decimal.NewFromInt(500)

	_, err := h.ds.RecordDistribution(context.Background(), dist)
	require.NoError(t, err)
	return dist
}

func TestRecoverStuckDistributionsResettles(t *testing.T) {
	h := newTestPayout(t)
	h.fundPool(t, "camp_1", 10000)

	stuck := seedStuckDistribution(t, h, "camp_1", "sub_a", model.StatusPending)

	n, err := h.payout.RecoverStuckDistributions(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recovered, err := h.ds.GetDistribution(context.Background(), stuck.DistributionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, recovered.Status)
	assert.True(t, h.node.Ledger().IsRewarded("camp_1", "sub_a"))
}

func TestRecoverStuckDistributionsResettlesFailedRow(t *testing.T) {
	h := newTestPayout(t)
	h.fundPool(t, "camp_1", 10000)

	// A crash between the failed write and the manual_fallback write leaves
	// the row FAILED, which is non-terminal. The sweep must re-drive it.
	stuck := seedStuckDistribution(t, h, "camp_1", "sub_a", model.StatusFailed)

	n, err := h.payout.RecoverStuckDistributions(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recovered, err := h.ds.GetDistribution(context.Background(), stuck.DistributionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, recovered.Status)
	assert.True(t, h.node.Ledger().IsRewarded("camp_1", "sub_a"))
}

func TestRecoverStuckDistributionsAlreadyPaidOnChain(t *testing.T) {
	h := newTestPayout(t)
	h.fundPool(t, "camp_1", 10000)

	// The payout confirmed on chain but the process died before the mirror
	// was updated, leaving the row SUBMITTED.
	stuck := seedStuckDistribution(t, h, "camp_1", "sub_a", model.StatusSubmitted)
	_, err := h.node.Ledger().Distribute(h.payout.SignerAddress(), "camp_1", "sub_a", stuck.Recipient, 500, "0xearlier")
	require.NoError(t, err)

	n, err := h.payout.RecoverStuckDistributions(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recovered, err := h.ds.GetDistribution(context.Background(), stuck.DistributionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, recovered.Status)

	// The sweep must not pay a second time.
	balance, err := h.node.Ledger().PoolBalance("camp_1")
	require.NoError(t, err)
	assert.Equal(t, int64(9500), balance)
}

func TestRecoverStuckDistributionsSkipsFresh(t *testing.T) {
	h := newTestPayout(t)
	h.fundPool(t, "camp_1", 10000)

	dist := payoutRequest("camp_1", "sub_a", 500)
	dist.DistributionID = model.GenerateUUIDWithSuffix("dist")
	dist.AmountNative = 500
	dist.Status = model.StatusPending
	dist.CreatedAt = time.Now()
	dist.UpdatedAt = time.Now()
	_, err := h.ds.RecordDistribution(context.Background(), dist)
	require.NoError(t, err)

	n, err := h.payout.RecoverStuckDistributions(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecoveryProcessorStartStop(t *testing.T) {
	h := newTestPayout(t)

	processor := NewStuckDistributionRecoveryProcessor(h.payout)
	assert.False(t, processor.IsRunning())

	processor.Start(context.Background())
	assert.True(t, processor.IsRunning())

	processor.Stop()
	assert.False(t, processor.IsRunning())
}
