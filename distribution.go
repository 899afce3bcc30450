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
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bountybase/payout/chain"
	"github.com/bountybase/payout/config"
	"github.com/bountybase/payout/contract"
	"github.com/bountybase/payout/internal/apierror"
	redlock "github.com/bountybase/payout/internal/lock"
	"github.com/bountybase/payout/internal/notification"
	"github.com/bountybase/payout/model"
)

var (
	tracer = otel.Tracer("Distribute reward")
)

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

func distributionLockKey(campaignID, submissionID string) string {
	return fmt.Sprintf("payout:dist:%s:%s", campaignID, submissionID)
}

func (p *Payout) acquireLock(ctx context.Context, cfg *config.Configuration, campaignID, submissionID string) (*redlock.Locker, error) {
	locker := redlock.NewLocker(p.redis, distributionLockKey(campaignID, submissionID), model.GenerateUUIDWithSuffix("loc"))
	// Replicas racing on the same pair wait here instead of failing, so the
	// loser observes the winner's outcome rather than erroring back to the
	// approval workflow.
	err := locker.WaitLock(ctx, cfg.Retry.LockTimeout(), cfg.Retry.LockTimeout())
	if err != nil {
		return nil, err
	}
	return locker, nil
}

// DistributeReward settles a bounty payout for one (campaign, submission)
// pair. It is safe to call any number of times with the same pair: the first
// call that reaches the chain pays, every later call observes the recorded
// outcome. The returned result is the only signal the approval workflow may
// use to present a bounty as paid.
func (p *Payout) DistributeReward(ctx context.Context, req *model.Distribution) (*model.DistributionResult, error) {
	ctx, span := tracer.Start(ctx, "Distributing reward")
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return &model.DistributionResult{Outcome: model.ResultInvalidInput, Reason: err.Error()}, nil
	}

	if !p.ChainConfigured() {
		return &model.DistributionResult{Outcome: model.ResultServiceUnavailable, Reason: "chain is not configured"}, nil
	}

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	locker, err := p.acquireLock(ctx, cfg, req.CampaignID, req.SubmissionID)
	if err != nil {
		return nil, logAndRecordError(span, "payout lock error: ", err)
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		err := locker.Unlock(ctx)
		if err != nil {
			logrus.Error("lock error", err)
		}
	}(locker, ctx)

	dist, err := p.resumeOrCreate(ctx, req)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrUnavailable {
			return &model.DistributionResult{Outcome: model.ResultServiceUnavailable, Reason: apiErr.Message}, nil
		}
		return nil, logAndRecordError(span, "failed to record distribution: ", err)
	}
	if dist.IsTerminal() {
		return terminalResult(dist), nil
	}

	return p.settle(ctx, cfg, dist)
}

// RetryDistribution re-runs settlement for a distribution that previously
// landed in MANUAL_FALLBACK or FAILED. Operator initiated; the on-chain
// rewarded-set still guarantees the hunter cannot be paid twice even if the
// original transaction was secretly included.
func (p *Payout) RetryDistribution(ctx context.Context, distributionID string) (*model.DistributionResult, error) {
	ctx, span := tracer.Start(ctx, "Retrying distribution")
	defer span.End()

	if !p.ChainConfigured() {
		return &model.DistributionResult{Outcome: model.ResultServiceUnavailable, Reason: "chain is not configured"}, nil
	}

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	dist, err := p.datasource.GetDistribution(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	if dist.Status == model.StatusConfirmed {
		return terminalResult(dist), nil
	}

	locker, err := p.acquireLock(ctx, cfg, dist.CampaignID, dist.SubmissionID)
	if err != nil {
		return nil, logAndRecordError(span, "payout lock error: ", err)
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		err := locker.Unlock(ctx)
		if err != nil {
			logrus.Error("lock error", err)
		}
	}(locker, ctx)

	dist.Status = model.StatusPending
	dist.Reason = ""
	if err := p.datasource.UpdateDistribution(ctx, dist); err != nil {
		return nil, err
	}

	return p.settle(ctx, cfg, dist)
}

// resumeOrCreate loads the existing row for the pair or inserts a fresh
// PENDING one. Two replicas racing past the redis lock still converge here:
// the loser's insert hits the unique constraint and adopts the winner's row.
func (p *Payout) resumeOrCreate(ctx context.Context, req *model.Distribution) (*model.Distribution, error) {
	existing, err := p.datasource.GetDistributionByPair(ctx, req.CampaignID, req.SubmissionID)
	if err == nil {
		return existing, nil
	}
	if apiErr, ok := err.(apierror.APIError); !ok || apiErr.Code != apierror.ErrNotFound {
		return nil, err
	}

	amountNative, err := p.convert(ctx, req.AmountFiat)
	if err != nil {
		return nil, err
	}
	if amountNative <= 0 {
		return nil, fmt.Errorf("amount %s converts to zero native units", req.AmountFiat.String())
	}

	dist := &model.Distribution{
		DistributionID: model.GenerateUUIDWithSuffix("dist"),
		CampaignID:     req.CampaignID,
		SubmissionID:   req.SubmissionID,
		Recipient:      req.Recipient,
		AmountFiat:     req.AmountFiat,
		AmountNative:   amountNative,
		Status:         model.StatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
		MetaData:       req.MetaData,
	}
	dist.Hash = dist.HashDistribution()

	recorded, err := p.datasource.RecordDistribution(ctx, dist)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
			return p.datasource.GetDistributionByPair(ctx, req.CampaignID, req.SubmissionID)
		}
		return nil, err
	}
	return recorded, nil
}

// settle drives a non-terminal distribution to a terminal state. Transient
// errors are retried with exponential backoff up to the configured attempt
// budget; deterministic contract reverts and an exhausted budget both end in
// MANUAL_FALLBACK.
func (p *Payout) settle(ctx context.Context, cfg *config.Configuration, dist *model.Distribution) (*model.DistributionResult, error) {
	// The rewarded-set is authoritative. A row left SUBMITTED by a crash or a
	// confirmation timeout may already be paid.
	rewarded, err := p.chain.IsRewarded(ctx, dist.CampaignID, dist.SubmissionID)
	if err == nil && rewarded {
		return p.markConfirmed(ctx, dist, dist.TxHash, model.ResultAlreadyDistributed)
	}
	if err != nil {
		logrus.Warnf("rewarded-set precheck failed for %s, proceeding to submit: %v", dist.DistributionID, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Retry.BaseBackoff()
	bo.MaxInterval = cfg.Retry.MaxBackoff()
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.Retry.MaxAttempts-1)), ctx)

	var result *model.DistributionResult
	retryErr := backoff.Retry(func() error {
		res, err := p.attemptOnce(ctx, cfg, dist)
		if err != nil {
			logrus.Warnf("payout attempt %d for %s failed: %v", dist.Retries, dist.DistributionID, err)
			return err
		}
		result = res
		return nil
	}, policy)

	if retryErr != nil {
		return p.markManualFallback(ctx, dist, fmt.Sprintf("retries exhausted: %v", retryErr))
	}
	return result, nil
}

// attemptOnce makes a single sign/submit/confirm pass. A returned error is
// retryable; a returned result is final.
func (p *Payout) attemptOnce(ctx context.Context, cfg *config.Configuration, dist *model.Distribution) (*model.DistributionResult, error) {
	dist.Retries++

	// Each attempt signs fresh so it carries the signer's current nonce.
	signed, err := p.signer.SignDistribute(ctx, chain.DistributeParams{
		CampaignID:   dist.CampaignID,
		SubmissionID: dist.SubmissionID,
		Recipient:    dist.Recipient,
		Amount:       dist.AmountNative,
	})
	if err != nil {
		return nil, err
	}

	txHash, err := p.chain.Submit(ctx, signed)
	if err != nil {
		if errors.Is(err, chain.ErrBadNonce) {
			if rerr := p.signer.Resync(ctx); rerr != nil {
				logrus.Errorf("nonce resync failed: %v", rerr)
			}
		}
		return nil, err
	}

	dist.TxHash = txHash
	dist.Status = model.StatusSubmitted
	if err := p.datasource.UpdateDistribution(ctx, dist); err != nil {
		logrus.Errorf("failed to persist submitted state for %s: %v", dist.DistributionID, err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, cfg.Chain.ConfirmTimeoutDuration())
	receipt, err := p.chain.WaitForReceipt(confirmCtx, txHash)
	cancel()
	if err != nil {
		if errors.Is(err, chain.ErrConfirmTimeout) {
			// The transaction may still land after the window. Reconcile
			// against the rewarded-set before treating the timeout as failure.
			rewarded, rerr := p.chain.IsRewarded(ctx, dist.CampaignID, dist.SubmissionID)
			if rerr == nil && rewarded {
				return p.markConfirmed(ctx, dist, txHash, model.ResultConfirmed)
			}
			if rerr := p.signer.Resync(ctx); rerr != nil {
				logrus.Errorf("nonce resync failed: %v", rerr)
			}
		}
		return nil, err
	}

	if receipt.Confirmed() {
		return p.markConfirmed(ctx, dist, txHash, model.ResultConfirmed)
	}

	switch receipt.RevertReason {
	case contract.ReasonAlreadyRewarded:
		// Paid by an earlier transaction, possibly one of ours that outlived
		// its confirmation window. The hash of the reverted transaction is not
		// the payment record, so it must not be stored as one.
		return p.markConfirmed(ctx, dist, "", model.ResultAlreadyDistributed)
	default:
		// Deterministic revert; retrying the same transaction cannot succeed.
		return p.markManualFallback(ctx, dist, receipt.RevertReason)
	}
}

func (p *Payout) markConfirmed(ctx context.Context, dist *model.Distribution, txHash, outcome string) (*model.DistributionResult, error) {
	dist.Status = model.StatusConfirmed
	dist.TxHash = txHash
	if err := p.datasource.UpdateDistribution(ctx, dist); err != nil {
		// The chain has already paid. Surface the mirror failure but never
		// undo the outcome.
		logrus.Errorf("failed to persist confirmed state for %s: %v", dist.DistributionID, err)
	}

	p.refreshPoolMirror(ctx, dist.CampaignID)
	p.postDistributionActions(ctx, "distribution.confirmed", dist)

	return &model.DistributionResult{
		Outcome:        outcome,
		TxHash:         txHash,
		DistributionID: dist.DistributionID,
	}, nil
}

func (p *Payout) markManualFallback(ctx context.Context, dist *model.Distribution, reason string) (*model.DistributionResult, error) {
	dist.Reason = reason

	// Walk the row through FAILED so the audit trail shows the failure before
	// the handoff to manual payout.
	if dist.CanTransition(model.StatusFailed) {
		dist.Status = model.StatusFailed
		if err := p.datasource.UpdateDistribution(ctx, dist); err != nil {
			logrus.Errorf("failed to persist failed state for %s: %v", dist.DistributionID, err)
		}
	}
	dist.Status = model.StatusManualFallback
	if err := p.datasource.UpdateDistribution(ctx, dist); err != nil {
		logrus.Errorf("failed to persist manual fallback state for %s: %v", dist.DistributionID, err)
	}

	notification.NotifyError(fmt.Errorf("distribution %s moved to manual fallback: %s", dist.DistributionID, reason))
	p.postDistributionActions(ctx, "distribution.manual_fallback", dist)

	return &model.DistributionResult{
		Outcome:        model.ResultManualFallback,
		Reason:         reason,
		DistributionID: dist.DistributionID,
	}, nil
}

// refreshPoolMirror overwrites the mirrored pool balance with the
// chain-observed value. Best effort, the mirror is display and audit only.
func (p *Payout) refreshPoolMirror(ctx context.Context, campaignID string) {
	balance, err := p.chain.PoolBalance(ctx, campaignID)
	if err != nil {
		logrus.Warnf("failed to read pool balance for campaign %s: %v", campaignID, err)
		return
	}
	if err := p.datasource.UpdatePoolBalance(ctx, campaignID, balance); err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrNotFound {
			return
		}
		logrus.Warnf("failed to refresh pool mirror for campaign %s: %v", campaignID, err)
	}
}

func (p *Payout) postDistributionActions(_ context.Context, event string, dist *model.Distribution) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   event,
			Payload: dist,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

// GetDistribution returns the mirror row for a distribution ID.
func (p *Payout) GetDistribution(ctx context.Context, id string) (*model.Distribution, error) {
	return p.datasource.GetDistribution(ctx, id)
}

// GetDistributionsByStatus lists mirror rows by status for operator review.
func (p *Payout) GetDistributionsByStatus(ctx context.Context, status string, limit, offset int) ([]*model.Distribution, error) {
	return p.datasource.GetDistributionsByStatus(ctx, status, limit, offset)
}

func terminalResult(dist *model.Distribution) *model.DistributionResult {
	switch dist.Status {
	case model.StatusConfirmed:
		return &model.DistributionResult{
			Outcome:        model.ResultAlreadyDistributed,
			TxHash:         dist.TxHash,
			DistributionID: dist.DistributionID,
		}
	default:
		return &model.DistributionResult{
			Outcome:        model.ResultManualFallback,
			Reason:         dist.Reason,
			DistributionID: dist.DistributionID,
		}
	}
}
