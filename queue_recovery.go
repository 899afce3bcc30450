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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bountybase/payout/model"
)

// StuckDistributionRecoveryProcessor sweeps distributions that the service
// lost track of, typically because a worker crashed between persisting the
// PENDING row and observing the receipt. Each stuck row is re-driven through
// the normal settlement path; the on-chain rewarded-set makes the re-drive
// safe even when the original transaction secretly confirmed.
type StuckDistributionRecoveryProcessor struct {
	payout         *Payout
	batchSize      int
	maxWorkers     int
	pollInterval   time.Duration
	stuckThreshold time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex
}

func NewStuckDistributionRecoveryProcessor(payout *Payout) *StuckDistributionRecoveryProcessor {
	maxWorkers := 10
	return &StuckDistributionRecoveryProcessor{
		payout:         payout,
		batchSize:      maxWorkers * 10,
		maxWorkers:     maxWorkers,
		pollInterval:   30 * time.Second,
		stuckThreshold: 1 * time.Hour,
		stopCh:         make(chan struct{}),
	}
}

func (p *StuckDistributionRecoveryProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	logrus.Info("Stuck distribution recovery processor started")
}

func (p *StuckDistributionRecoveryProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Stuck distribution recovery processor stopped")
}

func (p *StuckDistributionRecoveryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *StuckDistributionRecoveryProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Stuck distribution recovery processor context cancelled")
			return
		case <-p.stopCh:
			logrus.Info("Stuck distribution recovery processor stop signal received")
			return
		case <-ticker.C:
			p.recoverWithThreshold(ctx, p.stuckThreshold)
		}
	}
}

// RecoverStuckDistributions triggers an immediate recovery sweep using the
// provided threshold. Exposed for the manual trigger API endpoint.
func (p *Payout) RecoverStuckDistributions(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold < 2*time.Minute {
		threshold = 2 * time.Minute
	}

	processor := NewStuckDistributionRecoveryProcessor(p)
	return processor.recoverWithThreshold(ctx, threshold), nil
}

func (p *StuckDistributionRecoveryProcessor) recoverWithThreshold(ctx context.Context, threshold time.Duration) int {
	if !p.payout.ChainConfigured() {
		return 0
	}

	stuck, err := p.payout.datasource.GetStuckDistributions(ctx, threshold, p.batchSize)
	if err != nil {
		logrus.Errorf("failed to get stuck distributions: %v", err)
		return 0
	}

	if len(stuck) == 0 {
		return 0
	}

	logrus.Infof("Processing %d stuck distributions with %d workers (threshold=%v)", len(stuck), p.maxWorkers, threshold)

	sem := make(chan struct{}, p.maxWorkers)
	var batchWg sync.WaitGroup

	for _, dist := range stuck {
		sem <- struct{}{}
		batchWg.Add(1)
		go func(d *model.Distribution) {
			defer batchWg.Done()
			defer func() { <-sem }()
			if err := p.processStuckDistribution(ctx, d); err != nil {
				logrus.Errorf("failed to process stuck distribution %s: %v", d.DistributionID, err)
			}
		}(dist)
	}

	batchWg.Wait()
	return len(stuck)
}

func (p *StuckDistributionRecoveryProcessor) processStuckDistribution(ctx context.Context, dist *model.Distribution) error {
	// DistributeReward resumes the existing row: the pair lookup finds it, the
	// rewarded-set precheck catches payouts that confirmed after a crash, and
	// the normal retry budget applies before the manual fallback handoff.
	result, err := p.payout.DistributeReward(ctx, dist)
	if err != nil {
		return err
	}

	logrus.Infof("Recovered stuck distribution %s with outcome %s", dist.DistributionID, result.Outcome)
	return nil
}
