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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/bountybase/payout"
	"github.com/bountybase/payout/config"
	redis_db "github.com/bountybase/payout/internal/redis-db"
	"github.com/bountybase/payout/model"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// processDistribution settles a queued payout. Terminal outcomes, including
// the manual fallback handoff, consume the task; only transport errors are
// pushed back for an asynq-level retry.
func (b *payoutInstance) processDistribution(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("payout.distributions.worker").Start(ctx, "Process Distribution From Redis Queue")
	defer span.End()

	var dist model.Distribution
	if err := json.Unmarshal(t.Payload(), &dist); err != nil {
		logrus.Error(err)
		return err
	}

	result, err := b.payout.DistributeReward(ctx, &dist)
	if err != nil {
		logrus.Infof("Distribution %s pushed back for retry due to error: %v", dist.DistributionID, err)
		return err
	}

	if result.Outcome == model.ResultServiceUnavailable {
		return fmt.Errorf("chain unavailable for distribution %s", dist.DistributionID)
	}

	log.Printf(" [*] Distribution Processed %s outcome=%s", dist.DistributionID, result.Outcome)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.WebhookQueue] = 3

	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.PayoutQueue, i)
		queues[queueName] = 1
	}
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(fmt.Sprintf("redis://%s", conf.Redis.Dns))
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			// Payouts within a queue partition must run serially so payouts
			// from one pool cannot race each other on the pool balance.
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *payoutInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.PayoutQueue, i)
		mux.HandleFunc(queueName, b.processDistribution)
	}

	mux.HandleFunc(cfg.Queue.WebhookQueue, payout.ProcessWebhook)
}

// workerCommands defines the "workers" command to start worker processes that
// consume the payout queue partitions and the webhook queue.
func workerCommands(b *payoutInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start payout workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			// Asynqmon server for health checks and queue monitoring.
			redisOption, _ := redis_db.ParseRedisURL(fmt.Sprintf("redis://%s", conf.Redis.Dns))
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
