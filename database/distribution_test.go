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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bountybase/payout/internal/apierror"
	"github.com/bountybase/payout/model"
)

func newTestDatasource(t *testing.T) (Datasource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Datasource{Conn: db}, mock
}

func testDistribution() *model.Distribution {
	now := time.Now()
	return &model.Distribution{
		DistributionID: model.GenerateUUIDWithSuffix("dist"),
		CampaignID:     "camp_1",
		SubmissionID:   gofakeit.UUID(),
		Recipient:      "9aE476sH92Vz7DMPyq5WLSdFp5PYf7mb3pKDk2rg9dET",
		AmountFiat:     decimal.NewFromInt(50),
		AmountNative:   5000,
		Status:         model.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

var distributionRows = []string{
	"distribution_id", "campaign_id", "submission_id", "recipient", "amount_fiat",
	"amount_native", "status", "tx_hash", "reason", "retries", "hash", "created_at", "updated_at", "meta_data",
}

func TestRecordDistribution(t *testing.T) {
	d, mock := newTestDatasource(t)
	dist := testDistribution()

	mock.ExpectExec("INSERT INTO distributions").
		WithArgs(dist.DistributionID, dist.CampaignID, dist.SubmissionID, dist.Recipient,
			dist.AmountFiat.String(), dist.AmountNative, dist.Status, sqlmock.AnyArg(),
			sqlmock.AnyArg(), dist.Retries, dist.Hash, dist.CreatedAt, dist.UpdatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := d.RecordDistribution(context.Background(), dist)
	assert.NoError(t, err)
	assert.Equal(t, dist.DistributionID, result.DistributionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDistributionConflict(t *testing.T) {
	d, mock := newTestDatasource(t)
	dist := testDistribution()

	// ON CONFLICT DO NOTHING affects zero rows when the pair already exists.
	mock.ExpectExec("INSERT INTO distributions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := d.RecordDistribution(context.Background(), dist)
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetDistributionByPair(t *testing.T) {
	d, mock := newTestDatasource(t)
	now := time.Now()

	rows := sqlmock.NewRows(distributionRows).
		AddRow("dist_1", "camp_1", "sub_a", "recipient-addr", "50", 5000,
			model.StatusConfirmed, "0xhash", nil, 1, "h", now, now, []byte(`{"k":"v"}`))

	mock.ExpectQuery("SELECT (.+) FROM distributions WHERE campaign_id = \\$1 AND submission_id = \\$2").
		WithArgs("camp_1", "sub_a").
		WillReturnRows(rows)

	dist, err := d.GetDistributionByPair(context.Background(), "camp_1", "sub_a")
	require.NoError(t, err)
	assert.Equal(t, "dist_1", dist.DistributionID)
	assert.Equal(t, model.StatusConfirmed, dist.Status)
	assert.Equal(t, "0xhash", dist.TxHash)
	assert.True(t, decimal.NewFromInt(50).Equal(dist.AmountFiat))
	assert.Equal(t, "v", dist.MetaData["k"])
}

func TestGetDistributionByPairNotFound(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectQuery("SELECT (.+) FROM distributions WHERE campaign_id = \\$1 AND submission_id = \\$2").
		WithArgs("camp_1", "sub_missing").
		WillReturnRows(sqlmock.NewRows(distributionRows))

	_, err := d.GetDistributionByPair(context.Background(), "camp_1", "sub_missing")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdateDistribution(t *testing.T) {
	d, mock := newTestDatasource(t)
	dist := testDistribution()
	dist.Status = model.StatusSubmitted
	dist.TxHash = "0xabc"
	dist.Retries = 1

	mock.ExpectExec("UPDATE distributions").
		WithArgs(dist.DistributionID, dist.Status, sqlmock.AnyArg(), sqlmock.AnyArg(), dist.Retries, model.StatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, d.UpdateDistribution(context.Background(), dist))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStuckDistributions(t *testing.T) {
	d, mock := newTestDatasource(t)
	now := time.Now()

	rows := sqlmock.NewRows(distributionRows).
		AddRow("dist_1", "camp_1", "sub_a", "addr", "10", 1000,
			model.StatusPending, nil, nil, 0, "h", now.Add(-2*time.Hour), now.Add(-2*time.Hour), nil).
		AddRow("dist_2", "camp_2", "sub_b", "addr", "20", 2000,
			model.StatusSubmitted, "0x1", nil, 1, "h", now.Add(-90*time.Minute), now.Add(-90*time.Minute), nil)

	mock.ExpectQuery("SELECT (.+) FROM distributions WHERE status IN").
		WithArgs(model.StatusPending, model.StatusSubmitted, model.StatusFailed, sqlmock.AnyArg(), 100).
		WillReturnRows(rows)

	stuck, err := d.GetStuckDistributions(context.Background(), time.Hour, 100)
	require.NoError(t, err)
	require.Len(t, stuck, 2)
	assert.Equal(t, "dist_1", stuck[0].DistributionID)
	assert.Equal(t, model.StatusSubmitted, stuck[1].Status)
}

func TestRecordAndGetPool(t *testing.T) {
	d, mock := newTestDatasource(t)
	now := time.Now()
	pool := &model.RewardPool{
		PoolID:       model.GenerateUUIDWithSuffix("pool"),
		CampaignID:   "camp_1",
		OwnerAddress: "owner-addr",
		Balance:      100,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec("INSERT INTO reward_pools").
		WithArgs(pool.PoolID, pool.CampaignID, pool.OwnerAddress, pool.Balance, pool.CreatedAt, pool.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := d.RecordPool(context.Background(), pool)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"pool_id", "campaign_id", "owner_address", "balance", "created_at", "updated_at"}).
		AddRow(pool.PoolID, pool.CampaignID, pool.OwnerAddress, pool.Balance, now, now)
	mock.ExpectQuery("SELECT (.+) FROM reward_pools WHERE campaign_id = \\$1").
		WithArgs("camp_1").
		WillReturnRows(rows)

	got, err := d.GetPool(context.Background(), "camp_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance)
}

func TestUpdatePoolBalance(t *testing.T) {
	d, mock := newTestDatasource(t)

	mock.ExpectExec("UPDATE reward_pools").
		WithArgs("camp_1", int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, d.UpdatePoolBalance(context.Background(), "camp_1", 40))

	mock.ExpectExec("UPDATE reward_pools").
		WithArgs("camp_missing", int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := d.UpdatePoolBalance(context.Background(), "camp_missing", 40)
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}
