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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/bountybase/payout/config"
)

func webhookTestConfig(addr, url string) *config.Configuration {
	cfg := &config.Configuration{
		Redis: config.RedisConfig{Dns: addr},
		Queue: config.QueueConfig{PayoutQueue: "new:payout", WebhookQueue: "new:webhook", NumberOfQueues: 4},
	}
	cfg.Notification.Webhook.Url = url
	return cfg
}

func TestSendWebhook(t *testing.T) {
	mr := miniredis.RunT(t)

	config.MockConfig(webhookTestConfig(mr.Addr(), "https://localhost:5001/webhook"))

	testData := NewWebhook{
		Event: "distribution.confirmed",
		Payload: map[string]interface{}{
			"distribution_id": "dist_test",
		},
	}

	err := SendWebhook(testData)
	assert.NoError(t, err)

	// The task landed in the webhook queue.
	assert.NotEmpty(t, mr.Keys())
}

func TestSendWebhookDisabledWithoutURL(t *testing.T) {
	mr := miniredis.RunT(t)

	config.MockConfig(webhookTestConfig(mr.Addr(), ""))

	err := SendWebhook(NewWebhook{Event: "distribution.confirmed"})
	assert.NoError(t, err)
	assert.Empty(t, mr.Keys())
}
