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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bountybase/payout/internal/apierror"
	"github.com/bountybase/payout/model"
)

func (d Datasource) RecordPool(ctx context.Context, pool *model.RewardPool) (*model.RewardPool, error) {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO reward_pools(pool_id, campaign_id, owner_address, balance, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, pool.PoolID, pool.CampaignID, pool.OwnerAddress, pool.Balance, pool.CreatedAt, pool.UpdatedAt)

	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record reward pool", err)
	}
	return pool, nil
}

func (d Datasource) GetPool(ctx context.Context, campaignID string) (*model.RewardPool, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT pool_id, campaign_id, owner_address, balance, created_at, updated_at
		FROM reward_pools
		WHERE campaign_id = $1
	`, campaignID)

	pool := &model.RewardPool{}
	err := row.Scan(&pool.PoolID, &pool.CampaignID, &pool.OwnerAddress, &pool.Balance, &pool.CreatedAt, &pool.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Reward pool for campaign '%s' not found", campaignID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reward pool", err)
	}
	return pool, nil
}

// UpdatePoolBalance overwrites the mirrored balance with a chain-observed
// value. The mirror is never computed locally; it is refreshed from the
// contract after confirmed state changes.
func (d Datasource) UpdatePoolBalance(ctx context.Context, campaignID string, balance int64) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE reward_pools
		SET balance = $2, updated_at = NOW()
		WHERE campaign_id = $1
	`, campaignID, balance)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update pool balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Reward pool for campaign '%s' not found", campaignID), nil)
	}
	return nil
}
