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
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bountybase/payout/internal/apierror"
	"github.com/bountybase/payout/model"
)

const distributionColumns = `distribution_id, campaign_id, submission_id, recipient, amount_fiat, amount_native, status, tx_hash, reason, retries, hash, created_at, updated_at, meta_data`

// RecordDistribution inserts a new distribution row. A conflict on the
// (campaign_id, submission_id) unique constraint is reported as ErrConflict
// so the caller can load and resume the existing row instead.
func (d Datasource) RecordDistribution(ctx context.Context, dist *model.Distribution) (*model.Distribution, error) {
	metaDataJSON, err := json.Marshal(dist.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		INSERT INTO distributions(distribution_id, campaign_id, submission_id, recipient, amount_fiat, amount_native, status, tx_hash, reason, retries, hash, created_at, updated_at, meta_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (campaign_id, submission_id) DO NOTHING
	`,
		dist.DistributionID, dist.CampaignID, dist.SubmissionID, dist.Recipient,
		dist.AmountFiat.String(), dist.AmountNative, dist.Status, nullable(dist.TxHash),
		nullable(dist.Reason), dist.Retries, dist.Hash, dist.CreatedAt, dist.UpdatedAt, metaDataJSON,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record distribution", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Distribution for campaign '%s' submission '%s' already exists", dist.CampaignID, dist.SubmissionID), nil)
	}

	return dist, nil
}

func (d Datasource) GetDistribution(ctx context.Context, id string) (*model.Distribution, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+distributionColumns+`
		FROM distributions
		WHERE distribution_id = $1
	`, id)

	dist, err := scanDistribution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Distribution with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve distribution", err)
	}
	return dist, nil
}

func (d Datasource) GetDistributionByPair(ctx context.Context, campaignID, submissionID string) (*model.Distribution, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+distributionColumns+`
		FROM distributions
		WHERE campaign_id = $1 AND submission_id = $2
	`, campaignID, submissionID)

	dist, err := scanDistribution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound,
				fmt.Sprintf("Distribution for campaign '%s' submission '%s' not found", campaignID, submissionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve distribution", err)
	}
	return dist, nil
}

// UpdateDistribution persists a state transition. Confirmed rows are
// immutable: the guard in the WHERE clause refuses to move a row out of
// CONFIRMED no matter what the in-memory copy says.
func (d Datasource) UpdateDistribution(ctx context.Context, dist *model.Distribution) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE distributions
		SET status = $2, tx_hash = $3, reason = $4, retries = $5, updated_at = NOW()
		WHERE distribution_id = $1 AND status != $6
	`, dist.DistributionID, dist.Status, nullable(dist.TxHash), nullable(dist.Reason), dist.Retries, model.StatusConfirmed)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update distribution", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 && dist.Status != model.StatusConfirmed {
		return apierror.NewAPIError(apierror.ErrNotFound,
			fmt.Sprintf("Distribution with ID '%s' not found or already confirmed", dist.DistributionID), nil)
	}
	return nil
}

func (d Datasource) GetDistributionsByStatus(ctx context.Context, status string, limit, offset int) ([]*model.Distribution, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+distributionColumns+`
		FROM distributions
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve distributions", err)
	}
	defer rows.Close()

	return scanDistributions(rows)
}

// GetStuckDistributions returns non-terminal rows that have not been touched
// for longer than olderThan. These are payouts the process lost track of,
// typically because it crashed between persisting the pending row and
// confirming the transaction. FAILED rows are included: a crash between the
// failed write and the manual_fallback write strands the row there.
func (d Datasource) GetStuckDistributions(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Distribution, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+distributionColumns+`
		FROM distributions
		WHERE status IN ($1, $2, $3) AND updated_at < $4
		ORDER BY updated_at ASC
		LIMIT $5
	`, model.StatusPending, model.StatusSubmitted, model.StatusFailed, cutoff, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stuck distributions", err)
	}
	defer rows.Close()

	return scanDistributions(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDistribution(row rowScanner) (*model.Distribution, error) {
	dist := &model.Distribution{}
	var (
		amountFiat   string
		txHash       sql.NullString
		reason       sql.NullString
		metaDataJSON []byte
	)
	err := row.Scan(
		&dist.DistributionID, &dist.CampaignID, &dist.SubmissionID, &dist.Recipient,
		&amountFiat, &dist.AmountNative, &dist.Status, &txHash, &reason,
		&dist.Retries, &dist.Hash, &dist.CreatedAt, &dist.UpdatedAt, &metaDataJSON,
	)
	if err != nil {
		return nil, err
	}

	dist.AmountFiat, err = decimal.NewFromString(amountFiat)
	if err != nil {
		return nil, err
	}
	dist.TxHash = txHash.String
	dist.Reason = reason.String
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &dist.MetaData); err != nil {
			return nil, err
		}
	}
	return dist, nil
}

func scanDistributions(rows *sql.Rows) ([]*model.Distribution, error) {
	var distributions []*model.Distribution
	for rows.Next() {
		dist, err := scanDistribution(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan distribution", err)
		}
		distributions = append(distributions, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate distributions", err)
	}
	return distributions, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
