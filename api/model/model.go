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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/bountybase/payout/model"
)

// CreateDistribution is the payout request body. Amount is the bounty in fiat
// units; conversion to chain-native units happens inside the engine.
type CreateDistribution struct {
	CampaignID   string                 `json:"campaign_id"`
	SubmissionID string                 `json:"submission_id"`
	Recipient    string                 `json:"recipient"`
	Amount       decimal.Decimal        `json:"amount"`
	Async        bool                   `json:"async"`
	MetaData     map[string]interface{} `json:"meta_data"`
}

func recipientValidation(value interface{}) error {
	addr, ok := value.(string)
	if !ok || !model.IsValidAddress(addr) {
		return errors.New("recipient must be a base58 chain address")
	}
	return nil
}

func (d *CreateDistribution) ValidateCreateDistribution() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.CampaignID, validation.Required),
		validation.Field(&d.SubmissionID, validation.Required),
		validation.Field(&d.Recipient, validation.Required, validation.By(recipientValidation)),
		validation.Field(&d.Amount, validation.By(func(value interface{}) error {
			amount, ok := value.(decimal.Decimal)
			if !ok || !amount.IsPositive() {
				return errors.New("amount must be positive")
			}
			return nil
		})),
	)
}

func (d *CreateDistribution) ToDistribution() *model.Distribution {
	return &model.Distribution{
		CampaignID:   d.CampaignID,
		SubmissionID: d.SubmissionID,
		Recipient:    d.Recipient,
		AmountFiat:   d.Amount,
		MetaData:     d.MetaData,
	}
}

// CreatePool is the reward pool creation body.
type CreatePool struct {
	CampaignID string `json:"campaign_id"`
}

func (p *CreatePool) ValidateCreatePool() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.CampaignID, validation.Required),
	)
}

// FundPool is the pool funding body. Amount is in chain-native units.
type FundPool struct {
	Amount int64 `json:"amount"`
}

func (p *FundPool) ValidateFundPool() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Amount, validation.Required, validation.Min(int64(1))),
	)
}

// WithdrawPool is the pool withdrawal body. Amount is in chain-native units.
type WithdrawPool struct {
	Amount int64 `json:"amount"`
}

func (p *WithdrawPool) ValidateWithdrawPool() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Amount, validation.Required, validation.Min(int64(1))),
	)
}

// RecoverStuck is the manual recovery trigger body.
type RecoverStuck struct {
	ThresholdMinutes int `json:"threshold_minutes"`
}
