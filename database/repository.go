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

package database

import (
	"context"
	"time"

	"github.com/bountybase/payout/model"
)

// IDataSource is the settlement-ledger persistence boundary.
type IDataSource interface {
	distribution
	pool
}

type distribution interface {
	RecordDistribution(ctx context.Context, dist *model.Distribution) (*model.Distribution, error)
	GetDistribution(ctx context.Context, id string) (*model.Distribution, error)
	GetDistributionByPair(ctx context.Context, campaignID, submissionID string) (*model.Distribution, error)
	UpdateDistribution(ctx context.Context, dist *model.Distribution) error
	GetDistributionsByStatus(ctx context.Context, status string, limit, offset int) ([]*model.Distribution, error)
	GetStuckDistributions(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Distribution, error)
}

type pool interface {
	RecordPool(ctx context.Context, pool *model.RewardPool) (*model.RewardPool, error)
	GetPool(ctx context.Context, campaignID string) (*model.RewardPool, error)
	UpdatePoolBalance(ctx context.Context, campaignID string, balance int64) error
}
