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
	"fmt"
	"sync"
	"time"

	"github.com/bountybase/payout/chain"
	"github.com/bountybase/payout/internal/apierror"
	"github.com/bountybase/payout/model"
)

// MemoryDataSource is an in-memory settlement ledger used by tests. It
// enforces the same invariants as the postgres implementation: unique
// (campaign, submission) pairs and immutable CONFIRMED rows.
type MemoryDataSource struct {
	mu            sync.Mutex
	distributions map[string]*model.Distribution
	pairs         map[string]string
	pools         map[string]*model.RewardPool
}

func NewMemoryDataSource() *MemoryDataSource {
	return &MemoryDataSource{
		distributions: make(map[string]*model.Distribution),
		pairs:         make(map[string]string),
		pools:         make(map[string]*model.RewardPool),
	}
}

func pairKey(campaignID, submissionID string) string {
	return campaignID + "/" + submissionID
}

func copyDistribution(d *model.Distribution) *model.Distribution {
	c := *d
	return &c
}

func (m *MemoryDataSource) RecordDistribution(_ context.Context, dist *model.Distribution) (*model.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(dist.CampaignID, dist.SubmissionID)
	if _, exists := m.pairs[key]; exists {
		return nil, apierror.APIError{Code: apierror.ErrConflict, Message: "distribution already exists"}
	}
	m.pairs[key] = dist.DistributionID
	m.distributions[dist.DistributionID] = copyDistribution(dist)
	return dist, nil
}

func (m *MemoryDataSource) GetDistribution(_ context.Context, id string) (*model.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dist, ok := m.distributions[id]
	if !ok {
		return nil, apierror.APIError{Code: apierror.ErrNotFound, Message: fmt.Sprintf("distribution %s not found", id)}
	}
	return copyDistribution(dist), nil
}

func (m *MemoryDataSource) GetDistributionByPair(_ context.Context, campaignID, submissionID string) (*model.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.pairs[pairKey(campaignID, submissionID)]
	if !ok {
		return nil, apierror.APIError{Code: apierror.ErrNotFound, Message: "distribution not found"}
	}
	return copyDistribution(m.distributions[id]), nil
}

func (m *MemoryDataSource) UpdateDistribution(_ context.Context, dist *model.Distribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.distributions[dist.DistributionID]
	if !ok {
		return apierror.APIError{Code: apierror.ErrNotFound, Message: "distribution not found"}
	}
	if current.Status == model.StatusConfirmed {
		if dist.Status == model.StatusConfirmed {
			return nil
		}
		return apierror.APIError{Code: apierror.ErrNotFound, Message: "distribution already confirmed"}
	}
	updated := copyDistribution(dist)
	updated.UpdatedAt = time.Now()
	m.distributions[dist.DistributionID] = updated
	return nil
}

func (m *MemoryDataSource) GetDistributionsByStatus(_ context.Context, status string, limit, offset int) ([]*model.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Distribution
	for _, dist := range m.distributions {
		if dist.Status == status {
			out = append(out, copyDistribution(dist))
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDataSource) GetStuckDistributions(_ context.Context, olderThan time.Duration, limit int) ([]*model.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var out []*model.Distribution
	for _, dist := range m.distributions {
		if dist.IsTerminal() {
			continue
		}
		if dist.UpdatedAt.Before(cutoff) {
			out = append(out, copyDistribution(dist))
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryDataSource) RecordPool(_ context.Context, pool *model.RewardPool) (*model.RewardPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pools[pool.CampaignID]; exists {
		return nil, apierror.APIError{Code: apierror.ErrConflict, Message: "pool already exists"}
	}
	c := *pool
	m.pools[pool.CampaignID] = &c
	return pool, nil
}

func (m *MemoryDataSource) GetPool(_ context.Context, campaignID string) (*model.RewardPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.pools[campaignID]
	if !ok {
		return nil, apierror.APIError{Code: apierror.ErrNotFound, Message: "pool not found"}
	}
	c := *pool
	return &c, nil
}

func (m *MemoryDataSource) UpdatePoolBalance(_ context.Context, campaignID string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.pools[campaignID]
	if !ok {
		return apierror.APIError{Code: apierror.ErrNotFound, Message: "pool not found"}
	}
	pool.Balance = balance
	pool.UpdatedAt = time.Now()
	return nil
}

// CountingChain wraps a ChainService and counts calls. Tests use it to assert
// that rejected inputs never reach the chain.
type CountingChain struct {
	ChainService
	mu    sync.Mutex
	calls int
}

func (c *CountingChain) count() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *CountingChain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *CountingChain) Submit(ctx context.Context, tx *chain.SignedTransaction) (string, error) {
	c.count()
	return c.ChainService.Submit(ctx, tx)
}

func (c *CountingChain) GetReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	c.count()
	return c.ChainService.GetReceipt(ctx, txHash)
}

func (c *CountingChain) WaitForReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	c.count()
	return c.ChainService.WaitForReceipt(ctx, txHash)
}

func (c *CountingChain) IsRewarded(ctx context.Context, campaignID, submissionID string) (bool, error) {
	c.count()
	return c.ChainService.IsRewarded(ctx, campaignID, submissionID)
}

func (c *CountingChain) PoolBalance(ctx context.Context, campaignID string) (int64, error) {
	c.count()
	return c.ChainService.PoolBalance(ctx, campaignID)
}
