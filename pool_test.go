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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndFundPool(t *testing.T) {
	h := newTestPayout(t)

	pool, err := h.payout.CreatePool(context.Background(), "camp_1")
	require.NoError(t, err)
	assert.Contains(t, pool.PoolID, "pool_")
	assert.Equal(t, "camp_1", pool.CampaignID)
	assert.Equal(t, h.payout.SignerAddress(), pool.OwnerAddress)
	assert.Equal(t, int64(0), pool.Balance)

	funded, err := h.payout.FundPool(context.Background(), "camp_1", 2500)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), funded.Balance)

	balance, err := h.node.Ledger().PoolBalance("camp_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), balance)
}

func TestCreatePoolDuplicate(t *testing.T) {
	h := newTestPayout(t)

	_, err := h.payout.CreatePool(context.Background(), "camp_1")
	require.NoError(t, err)

	_, err = h.payout.CreatePool(context.Background(), "camp_1")
	assert.Error(t, err)
}

func TestFundPoolInvalidAmount(t *testing.T) {
	h := newTestPayout(t)

	_, err := h.payout.FundPool(context.Background(), "camp_1", 0)
	assert.Error(t, err)

	_, err = h.payout.FundPool(context.Background(), "camp_1", -5)
	assert.Error(t, err)
}

func TestWithdrawPool(t *testing.T) {
	h := newTestPayout(t)

	_, err := h.payout.CreatePool(context.Background(), "camp_1")
	require.NoError(t, err)
	_, err = h.payout.FundPool(context.Background(), "camp_1", 1000)
	require.NoError(t, err)

	pool, err := h.payout.WithdrawPool(context.Background(), "camp_1", 400)
	require.NoError(t, err)
	assert.Equal(t, int64(600), pool.Balance)
}

func TestWithdrawPoolMoreThanBalance(t *testing.T) {
	h := newTestPayout(t)

	_, err := h.payout.CreatePool(context.Background(), "camp_1")
	require.NoError(t, err)
	_, err = h.payout.FundPool(context.Background(), "camp_1", 100)
	require.NoError(t, err)

	_, err = h.payout.WithdrawPool(context.Background(), "camp_1", 500)
	assert.Error(t, err)

	balance, err := h.node.Ledger().PoolBalance("camp_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestGetPoolRefreshesMirror(t *testing.T) {
	h := newTestPayout(t)

	_, err := h.payout.CreatePool(context.Background(), "camp_1")
	require.NoError(t, err)
	_, err = h.payout.FundPool(context.Background(), "camp_1", 1000)
	require.NoError(t, err)

	// Drift the mirror; GetPool must report the chain-observed value.
	require.NoError(t, h.ds.UpdatePoolBalance(context.Background(), "camp_1", 1))

	pool, err := h.payout.GetPool(context.Background(), "camp_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pool.Balance)
}

func TestPoolOpsUnavailableWithoutChain(t *testing.T) {
	h := newTestPayout(t)
	h.payout.chain = nil
	h.payout.signer = nil

	_, err := h.payout.CreatePool(context.Background(), "camp_1")
	assert.Error(t, err)

	_, err = h.payout.FundPool(context.Background(), "camp_1", 100)
	assert.Error(t, err)

	_, err = h.payout.IsRewarded(context.Background(), "camp_1", "sub_a")
	assert.Error(t, err)
}
