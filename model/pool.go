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
	"encoding/json"
	"time"
)

// RewardPool is the local mirror of an on-chain reward pool for one bounty
// campaign. Balance is in chain-native units and is eventually consistent
// with the ledger contract; it is refreshed from chain state rather than
// computed locally.
type RewardPool struct {
	ID           int64     `json:"-"`
	PoolID       string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	OwnerAddress string    `json:"owner_address"`
	Balance      int64     `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *RewardPool) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}
