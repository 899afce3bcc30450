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

package contract

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSigner = "signer-address"
	testOwner  = "owner-address"
	testHunter = "hunter-address"
)

func newFundedLedger(t *testing.T, balance int64) *Ledger {
	t.Helper()
	l := NewLedger(testSigner)
	require.NoError(t, l.CreatePool("camp_1", testOwner))
	require.NoError(t, l.FundPool("camp_1", balance))
	return l
}

func TestCreatePoolDuplicate(t *testing.T) {
	l := NewLedger(testSigner)
	assert.NoError(t, l.CreatePool("camp_1", testOwner))

	err := l.CreatePool("camp_1", testOwner)
	assert.Error(t, err)
	assert.Equal(t, ReasonPoolExists, ReasonOf(err))
}

func TestFundPoolMissing(t *testing.T) {
	l := NewLedger(testSigner)
	err := l.FundPool("camp_missing", 100)
	assert.Equal(t, ReasonPoolNotFound, ReasonOf(err))
}

func TestDistributeHappyPath(t *testing.T) {
	l := newFundedLedger(t, 100)

	event, err := l.Distribute(testSigner, "camp_1", "sub_a", testHunter, 60, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(60), event.Amount)
	assert.Equal(t, testHunter, event.Recipient)

	balance, err := l.PoolBalance("camp_1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
	assert.True(t, l.IsRewarded("camp_1", "sub_a"))
}

func TestDistributeUnauthorized(t *testing.T) {
	l := newFundedLedger(t, 100)

	_, err := l.Distribute("someone-else", "camp_1", "sub_a", testHunter, 10, "0xabc")
	assert.Equal(t, ReasonUnauthorized, ReasonOf(err))

	balance, _ := l.PoolBalance("camp_1")
	assert.Equal(t, int64(100), balance)
	assert.False(t, l.IsRewarded("camp_1", "sub_a"))
}

func TestDistributeAlreadyRewarded(t *testing.T) {
	l := newFundedLedger(t, 100)

	_, err := l.Distribute(testSigner, "camp_1", "sub_c", testHunter, 10, "0x1")
	require.NoError(t, err)

	// A retried submit for the same pair must revert and move no funds.
	_, err = l.Distribute(testSigner, "camp_1", "sub_c", testHunter, 10, "0x2")
	assert.Equal(t, ReasonAlreadyRewarded, ReasonOf(err))

	balance, _ := l.PoolBalance("camp_1")
	assert.Equal(t, int64(90), balance)
}

func TestDistributeInsufficientPool(t *testing.T) {
	l := newFundedLedger(t, 100)

	_, err := l.Distribute(testSigner, "camp_1", "sub_a", testHunter, 60, "0x1")
	require.NoError(t, err)

	_, err = l.Distribute(testSigner, "camp_1", "sub_b", testHunter, 60, "0x2")
	assert.Equal(t, ReasonInsufficientPool, ReasonOf(err))

	balance, _ := l.PoolBalance("camp_1")
	assert.Equal(t, int64(40), balance)
	assert.False(t, l.IsRewarded("camp_1", "sub_b"))
}

func TestWithdrawOnlyOwner(t *testing.T) {
	l := newFundedLedger(t, 100)

	err := l.Withdraw(testHunter, "camp_1", 50)
	assert.Equal(t, ReasonUnauthorized, ReasonOf(err))

	require.NoError(t, l.Withdraw(testOwner, "camp_1", 50))
	err = l.Withdraw(testOwner, "camp_1", 51)
	assert.Equal(t, ReasonInsufficientPool, ReasonOf(err))

	balance, _ := l.PoolBalance("camp_1")
	assert.Equal(t, int64(50), balance)
}

// Pool conservation: after any sequence of fund/distribute/withdraw calls the
// balance equals funds in minus successful distributions and withdrawals, and
// never goes negative.
func TestPoolConservation(t *testing.T) {
	l := newFundedLedger(t, 0)

	var funded, out int64
	for i := 0; i < 20; i++ {
		require.NoError(t, l.FundPool("camp_1", 10))
		funded += 10
	}
	for i := 0; i < 30; i++ {
		sub := fmt.Sprintf("sub_%d", i)
		if _, err := l.Distribute(testSigner, "camp_1", sub, testHunter, 9, "0x"); err == nil {
			out += 9
		}
	}
	if err := l.Withdraw(testOwner, "camp_1", 5); err == nil {
		out += 5
	}

	balance, err := l.PoolBalance("camp_1")
	require.NoError(t, err)
	assert.Equal(t, funded-out, balance)
	assert.GreaterOrEqual(t, balance, int64(0))
}

// Concurrent distributes for the same submission: exactly one wins.
func TestDistributeConcurrentSameSubmission(t *testing.T) {
	l := newFundedLedger(t, 100)

	var wg sync.WaitGroup
	successes := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := l.Distribute(testSigner, "camp_1", "sub_race", testHunter, 10, fmt.Sprintf("0x%d", n)); err == nil {
				successes <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	assert.Equal(t, 1, count)

	balance, _ := l.PoolBalance("camp_1")
	assert.Equal(t, int64(90), balance)
}

func TestEventsEmitted(t *testing.T) {
	l := newFundedLedger(t, 100)

	_, err := l.Distribute(testSigner, "camp_1", "sub_a", testHunter, 25, "0xaa")
	require.NoError(t, err)

	events := l.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "camp_1", events[0].CampaignID)
	assert.Equal(t, "sub_a", events[0].SubmissionID)
	assert.Equal(t, int64(25), events[0].Amount)
	assert.Equal(t, "0xaa", events[0].TxHash)
}
