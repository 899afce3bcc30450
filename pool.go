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
	"time"

	"github.com/bountybase/payout/chain"
	"github.com/bountybase/payout/config"
	"github.com/bountybase/payout/internal/apierror"
	"github.com/bountybase/payout/internal/notification"
	"github.com/bountybase/payout/model"
)

var errChainNotConfigured = apierror.APIError{
	Code:    apierror.ErrUnavailable,
	Message: "chain is not configured",
}

// CreatePool creates an on-chain reward pool for a campaign, owned by the
// platform account, and records its mirror row.
func (p *Payout) CreatePool(ctx context.Context, campaignID string) (*model.RewardPool, error) {
	ctx, span := tracer.Start(ctx, "Creating reward pool")
	defer span.End()

	if !p.ChainConfigured() {
		return nil, errChainNotConfigured
	}

	receipt, err := p.submitAndConfirm(ctx, chain.MethodCreatePool, chain.CreatePoolParams{
		CampaignID:   campaignID,
		OwnerAddress: p.signer.Address(),
	})
	if err != nil {
		return nil, logAndRecordError(span, "create pool error: ", err)
	}

	pool := &model.RewardPool{
		PoolID:       model.GenerateUUIDWithSuffix("pool"),
		CampaignID:   campaignID,
		OwnerAddress: p.signer.Address(),
		Balance:      0,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	pool, err = p.datasource.RecordPool(ctx, pool)
	if err != nil {
		return nil, logAndRecordError(span, "record pool error: ", err)
	}

	p.postPoolActions("pool.created", pool, receipt.TxHash)
	return pool, nil
}

// FundPool adds funds to a campaign's on-chain pool and refreshes the mirror
// with the chain-observed balance.
func (p *Payout) FundPool(ctx context.Context, campaignID string, amount int64) (*model.RewardPool, error) {
	ctx, span := tracer.Start(ctx, "Funding reward pool")
	defer span.End()

	if !p.ChainConfigured() {
		return nil, errChainNotConfigured
	}
	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "fund amount must be positive", nil)
	}

	receipt, err := p.submitAndConfirm(ctx, chain.MethodFundPool, chain.FundPoolParams{
		CampaignID: campaignID,
		Amount:     amount,
	})
	if err != nil {
		return nil, logAndRecordError(span, "fund pool error: ", err)
	}

	pool, err := p.refreshAndGetPool(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	p.postPoolActions("pool.funded", pool, receipt.TxHash)
	return pool, nil
}

// WithdrawPool returns unspent funds from a campaign's pool to its owner.
// The contract enforces that only the owner can withdraw; this just submits.
func (p *Payout) WithdrawPool(ctx context.Context, campaignID string, amount int64) (*model.RewardPool, error) {
	ctx, span := tracer.Start(ctx, "Withdrawing from reward pool")
	defer span.End()

	if !p.ChainConfigured() {
		return nil, errChainNotConfigured
	}
	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "withdraw amount must be positive", nil)
	}

	receipt, err := p.submitAndConfirm(ctx, chain.MethodWithdraw, chain.WithdrawParams{
		CampaignID: campaignID,
		Amount:     amount,
	})
	if err != nil {
		return nil, logAndRecordError(span, "withdraw error: ", err)
	}

	pool, err := p.refreshAndGetPool(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	p.postPoolActions("pool.withdrawn", pool, receipt.TxHash)
	return pool, nil
}

// GetPool returns the mirror row for a campaign's pool, refreshed from the
// chain when the chain is reachable.
func (p *Payout) GetPool(ctx context.Context, campaignID string) (*model.RewardPool, error) {
	if p.ChainConfigured() {
		p.refreshPoolMirror(ctx, campaignID)
	}
	return p.datasource.GetPool(ctx, campaignID)
}

// IsRewarded queries the contract's rewarded-set. The set is append-only, so
// positive answers are cached; negative answers always go to the chain.
func (p *Payout) IsRewarded(ctx context.Context, campaignID, submissionID string) (bool, error) {
	if !p.ChainConfigured() {
		return false, errChainNotConfigured
	}

	key := fmt.Sprintf("payout:rewarded:%s:%s", campaignID, submissionID)
	if p.cache != nil {
		var rewarded bool
		if err := p.cache.Get(ctx, key, &rewarded); err == nil && rewarded {
			return true, nil
		}
	}

	rewarded, err := p.chain.IsRewarded(ctx, campaignID, submissionID)
	if err != nil {
		return false, err
	}
	if rewarded && p.cache != nil {
		if err := p.cache.Set(ctx, key, true, 24*time.Hour); err != nil {
			notification.NotifyError(err)
		}
	}
	return rewarded, nil
}

// submitAndConfirm signs a contract call, submits it, and waits for its
// receipt within the configured confirmation window. A reverted receipt is
// returned as an error carrying the contract's revert reason.
func (p *Payout) submitAndConfirm(ctx context.Context, method string, params interface{}) (*chain.Receipt, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	signed, err := p.signer.SignContractCall(ctx, method, params)
	if err != nil {
		return nil, err
	}
	txHash, err := p.chain.Submit(ctx, signed)
	if err != nil {
		return nil, err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, cfg.Chain.ConfirmTimeoutDuration())
	defer cancel()
	receipt, err := p.chain.WaitForReceipt(confirmCtx, txHash)
	if err != nil {
		return nil, err
	}
	if !receipt.Confirmed() {
		return nil, fmt.Errorf("%s reverted: %s", method, receipt.RevertReason)
	}
	return receipt, nil
}

func (p *Payout) refreshAndGetPool(ctx context.Context, campaignID string) (*model.RewardPool, error) {
	p.refreshPoolMirror(ctx, campaignID)
	pool, err := p.datasource.GetPool(ctx, campaignID)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrNotFound {
			// Pool exists on chain but was created before the mirror. Backfill.
			balance, berr := p.chain.PoolBalance(ctx, campaignID)
			if berr != nil {
				return nil, berr
			}
			return p.datasource.RecordPool(ctx, &model.RewardPool{
				PoolID:       model.GenerateUUIDWithSuffix("pool"),
				CampaignID:   campaignID,
				OwnerAddress: p.signer.Address(),
				Balance:      balance,
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			})
		}
		return nil, err
	}
	return pool, nil
}

func (p *Payout) postPoolActions(event string, pool *model.RewardPool, txHash string) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event: event,
			Payload: map[string]interface{}{
				"pool":    pool,
				"tx_hash": txHash,
			},
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}
