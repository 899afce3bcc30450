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

package chain_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bountybase/payout/chain"
)

// fixedNonceSource serves a settable chain-observed nonce.
type fixedNonceSource struct {
	mu    sync.Mutex
	nonce uint64
}

func (f *fixedNonceSource) AccountNonce(_ context.Context, _ string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fixedNonceSource) set(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce = n
}

func newStandaloneSigner(t *testing.T, nonces chain.NonceSource) *chain.Signer {
	t.Helper()
	seedB58, _ := testSeed(t, 0x07)
	signer, err := chain.NewSigner(context.Background(), seedB58, testContract, nonces)
	require.NoError(t, err)
	t.Cleanup(signer.Close)
	return signer
}

func TestNewSignerRejectsBadSeed(t *testing.T) {
	_, err := chain.NewSigner(context.Background(), "not-base58-!!", testContract, &fixedNonceSource{})
	assert.Error(t, err)

	_, err = chain.NewSigner(context.Background(), "3yZe7d", testContract, &fixedNonceSource{}) // too short
	assert.Error(t, err)
}

func TestSignerStartsFromChainNonce(t *testing.T) {
	signer := newStandaloneSigner(t, &fixedNonceSource{nonce: 41})

	tx, err := signer.SignDistribute(context.Background(), chain.DistributeParams{CampaignID: "c", SubmissionID: "s", Recipient: "r", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(41), tx.Nonce)
	assert.Equal(t, uint64(42), signer.NextNonce())
}

// Nonce uniqueness under concurrency: N concurrent signing requests each
// receive a unique nonce; none is assigned twice, none is skipped.
func TestSignerConcurrentNonceUniqueness(t *testing.T) {
	signer := newStandaloneSigner(t, &fixedNonceSource{})

	const n = 50
	nonces := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := signer.SignDistribute(context.Background(), chain.DistributeParams{CampaignID: "c", SubmissionID: "s", Recipient: "r", Amount: 1})
			assert.NoError(t, err)
			nonces <- tx.Nonce
		}()
	}
	wg.Wait()
	close(nonces)

	seen := make(map[uint64]bool)
	for nonce := range nonces {
		assert.False(t, seen[nonce], "nonce %d assigned twice", nonce)
		seen[nonce] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, uint64(n), signer.NextNonce())
}

func TestSignerResync(t *testing.T) {
	source := &fixedNonceSource{}
	signer := newStandaloneSigner(t, source)

	// Burn a few nonces locally, as if the signed transactions were rejected
	// by the network before inclusion.
	for i := 0; i < 3; i++ {
		_, err := signer.SignDistribute(context.Background(), chain.DistributeParams{CampaignID: "c", SubmissionID: "s", Recipient: "r", Amount: 1})
		require.NoError(t, err)
	}
	require.Equal(t, uint64(3), signer.NextNonce())

	// The chain never saw them; resync snaps the counter back.
	source.set(0)
	require.NoError(t, signer.Resync(context.Background()))
	assert.Equal(t, uint64(0), signer.NextNonce())

	tx, err := signer.SignDistribute(context.Background(), chain.DistributeParams{CampaignID: "c", SubmissionID: "s", Recipient: "r", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tx.Nonce)
}

func TestSignerClosed(t *testing.T) {
	seedB58, _ := testSeed(t, 0x09)
	signer, err := chain.NewSigner(context.Background(), seedB58, testContract, &fixedNonceSource{})
	require.NoError(t, err)
	signer.Close()

	_, err = signer.SignDistribute(context.Background(), chain.DistributeParams{CampaignID: "c", SubmissionID: "s", Recipient: "r", Amount: 1})
	assert.Error(t, err)
}
