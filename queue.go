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
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hibiken/asynq"

	"github.com/bountybase/payout/config"
	"github.com/bountybase/payout/internal/apierror"
	redis_db "github.com/bountybase/payout/internal/redis-db"
	"github.com/bountybase/payout/model"
)

// Queue hands payout requests to the asynq workers.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(fmt.Sprintf("redis://%s", conf.Redis.Dns))
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// Enqueue adds a distribution to the payout queue. Distributions for the
// same campaign always land on the same queue partition, so payouts from one
// pool are processed serially and cannot race each other on the pool balance.
func (q *Queue) Enqueue(ctx context.Context, dist *model.Distribution) error {
	ctx, span := tracer.Start(ctx, "Adding distribution to redis queue")
	defer span.End()

	payload, err := json.Marshal(dist)
	if err != nil {
		return err
	}
	task, err := q.getTask(dist, payload)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued distribution: %s/%s", dist.CampaignID, dist.SubmissionID)

	return nil
}

// getTask generates a task for a distribution and assigns it to a queue
// partition picked by hashing the campaign ID.
func (q *Queue) getTask(dist *model.Distribution, payload []byte) (*asynq.Task, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, fmt.Errorf("error fetching config: %w", err)
	}
	queueIndex := hashCampaignID(dist.CampaignID) % cnf.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cnf.Queue.PayoutQueue, queueIndex+1)

	taskOptions := []asynq.Option{asynq.TaskID(dist.DistributionID), asynq.Queue(queueName)}
	return asynq.NewTask(queueName, payload, taskOptions...), nil
}

// hashCampaignID returns a consistent hash value for a campaign ID.
func hashCampaignID(campaignID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(campaignID))
	return int(hasher.Sum32())
}

// GetDistributionFromQueue retrieves a queued distribution by its ID, or nil
// if it is not waiting in any partition.
func (q *Queue) GetDistributionFromQueue(distributionID string) (*model.Distribution, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.PayoutQueue, i)
		task, err := q.Inspector.GetTaskInfo(queueName, distributionID)
		if err == nil && task != nil {
			var dist model.Distribution
			if err := json.Unmarshal(task.Payload, &dist); err != nil {
				return nil, err
			}
			return &dist, nil
		}
	}
	return nil, nil
}

// EnqueueDistribution records a PENDING mirror row and queues the payout for
// asynchronous settlement by the workers. Used by callers that do not want to
// block on chain confirmation.
func (p *Payout) EnqueueDistribution(ctx context.Context, req *model.Distribution) (*model.Distribution, error) {
	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	dist, err := p.resumeOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}
	if dist.IsTerminal() {
		return dist, nil
	}

	if err := p.queue.Enqueue(ctx, dist); err != nil {
		return nil, err
	}
	return dist, nil
}
