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

package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

const validRecipient = "9aE476sH92Vz7DMPyq5WLSdFp5PYf7mb3pKDk2rg9dET"

func validDistribution() *Distribution {
	return &Distribution{
		CampaignID:   "camp_1",
		SubmissionID: "sub_a",
		Recipient:    validRecipient,
		AmountFiat:   decimal.NewFromInt(50),
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validDistribution().Validate())

	d := validDistribution()
	d.CampaignID = ""
	assert.Error(t, d.Validate())

	d = validDistribution()
	d.SubmissionID = ""
	assert.Error(t, d.Validate())

	d = validDistribution()
	d.Recipient = "not-base58-!!"
	assert.Error(t, d.Validate())

	d = validDistribution()
	d.AmountFiat = decimal.Zero
	assert.Error(t, d.Validate())

	d = validDistribution()
	d.AmountFiat = decimal.NewFromInt(-10)
	assert.Error(t, d.Validate())
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress(validRecipient))
	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	// Valid base58 but too short.
	assert.False(t, IsValidAddress("3yZe7d"))
}

func TestStatusTransitions(t *testing.T) {
	d := validDistribution()

	d.Status = StatusPending
	assert.True(t, d.CanTransition(StatusSubmitted))
	assert.True(t, d.CanTransition(StatusFailed))
	assert.False(t, d.CanTransition(StatusManualFallback))

	d.Status = StatusSubmitted
	assert.True(t, d.CanTransition(StatusConfirmed))
	assert.True(t, d.CanTransition(StatusFailed))
	assert.False(t, d.CanTransition(StatusPending))

	d.Status = StatusFailed
	assert.True(t, d.CanTransition(StatusManualFallback))
	assert.False(t, d.CanTransition(StatusConfirmed))

	// Nothing leaves CONFIRMED.
	d.Status = StatusConfirmed
	assert.False(t, d.CanTransition(StatusSubmitted))
	assert.False(t, d.CanTransition(StatusFailed))
	assert.False(t, d.CanTransition(StatusManualFallback))
}

func TestIsTerminal(t *testing.T) {
	d := validDistribution()
	for status, terminal := range map[string]bool{
		StatusPending:        false,
		StatusSubmitted:      false,
		StatusFailed:         false,
		StatusConfirmed:      true,
		StatusManualFallback: true,
	} {
		d.Status = status
		assert.Equal(t, terminal, d.IsTerminal(), "status %s", status)
	}
}

func TestResultPaid(t *testing.T) {
	assert.True(t, (&DistributionResult{Outcome: ResultConfirmed}).Paid())
	assert.True(t, (&DistributionResult{Outcome: ResultAlreadyDistributed}).Paid())
	assert.False(t, (&DistributionResult{Outcome: ResultManualFallback}).Paid())
	assert.False(t, (&DistributionResult{Outcome: ResultServiceUnavailable}).Paid())
	assert.False(t, (&DistributionResult{Outcome: ResultInvalidInput}).Paid())
}

func TestHashDistribution(t *testing.T) {
	d := validDistribution()
	d.AmountNative = 5000
	h1 := d.HashDistribution()
	assert.Len(t, h1, 64)

	// Identity fields feed the hash; the amount matters.
	d.AmountNative = 5001
	assert.NotEqual(t, h1, d.HashDistribution())
}

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("dist")
	assert.Contains(t, id, "dist_")
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("dist"))
}
