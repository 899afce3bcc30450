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

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/bountybase/payout/cache"
	"github.com/bountybase/payout/chain"
	"github.com/bountybase/payout/config"
	"github.com/bountybase/payout/database"
	"github.com/bountybase/payout/internal/apierror"
	redis_db "github.com/bountybase/payout/internal/redis-db"
)

// ChainService is the read/submit surface of the reward-ledger node that the
// payout engine depends on. chain.Client satisfies it.
type ChainService interface {
	Submit(ctx context.Context, tx *chain.SignedTransaction) (string, error)
	GetReceipt(ctx context.Context, txHash string) (*chain.Receipt, error)
	WaitForReceipt(ctx context.Context, txHash string) (*chain.Receipt, error)
	IsRewarded(ctx context.Context, campaignID, submissionID string) (bool, error)
	PoolBalance(ctx context.Context, campaignID string) (int64, error)
}

// TransactionSigner produces signed platform transactions. chain.Signer
// satisfies it.
type TransactionSigner interface {
	SignContractCall(ctx context.Context, method string, params interface{}) (*chain.SignedTransaction, error)
	SignDistribute(ctx context.Context, params chain.DistributeParams) (*chain.SignedTransaction, error)
	Resync(ctx context.Context) error
	Address() string
}

// ConvertFunc converts a fiat bounty amount into chain-native units.
type ConvertFunc func(ctx context.Context, fiat decimal.Decimal) (int64, error)

// Payout represents the main struct for the payout application.
type Payout struct {
	queue      *Queue
	redis      redis.UniversalClient
	cache      cache.Cache
	datasource database.IDataSource
	chain      ChainService
	signer     TransactionSigner
	convert    ConvertFunc
}

// NewPayout initializes a new instance of Payout with the provided database
// datasource. It fetches the configuration and initializes the Redis client,
// the queue, and, when the chain section is configured, the chain client and
// the signer. A nil chain client means payouts report SERVICE_UNAVAILABLE
// while everything else keeps working.
func NewPayout(ctx context.Context, db database.IDataSource) (*Payout, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	newCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	newPayout := &Payout{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		cache:      newCache,
		convert:    FixedRateConverter(configuration.Chain.FiatRate),
	}

	if configuration.Chain.Configured() {
		client := chain.NewClient(configuration.Chain.NodeURL, configuration.Chain.ContractAddress, chain.ClientOptions{
			PollInterval: configuration.Chain.PollInterval(),
		})
		signer, err := chain.NewSigner(ctx, configuration.Chain.SigningKey, configuration.Chain.ContractAddress, client)
		if err != nil {
			return nil, err
		}
		newPayout.chain = client
		newPayout.signer = signer
	}

	return newPayout, nil
}

// ChainConfigured reports whether the engine has a chain client and signer to
// settle payouts with.
func (p *Payout) ChainConfigured() bool {
	return p.chain != nil && p.signer != nil
}

// SignerAddress returns the platform's chain address, or empty when the chain
// is not configured.
func (p *Payout) SignerAddress() string {
	if p.signer == nil {
		return ""
	}
	return p.signer.Address()
}

// FixedRateConverter converts fiat amounts to native units at a fixed
// native-units-per-fiat rate, truncating toward zero. Deployments with a live
// price feed swap in their own ConvertFunc. A missing rate is a service
// availability problem, not a caller problem, and is typed as such so
// DistributeReward reports SERVICE_UNAVAILABLE instead of erroring.
func FixedRateConverter(rate float64) ConvertFunc {
	return func(_ context.Context, fiat decimal.Decimal) (int64, error) {
		if rate <= 0 {
			return 0, apierror.NewAPIError(apierror.ErrUnavailable, "fiat conversion rate is not configured", nil)
		}
		return fiat.Mul(decimal.NewFromFloat(rate)).IntPart(), nil
	}
}
