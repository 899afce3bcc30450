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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/bountybase/payout/api/model"
	"github.com/bountybase/payout/internal/apierror"
)

// CreatePool creates an on-chain reward pool for a campaign.
func (a Api) CreatePool(c *gin.Context) {
	var newPool model2.CreatePool
	if err := c.ShouldBindJSON(&newPool); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := newPool.ValidateCreatePool(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.payout.CreatePool(c.Request.Context(), newPool.CampaignID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetPool returns the pool for a campaign, refreshed from the chain.
func (a Api) GetPool(c *gin.Context) {
	campaignID, passed := c.Params.Get("campaign_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "campaign_id is required. pass it in the route /:campaign_id"})
		return
	}

	resp, err := a.payout.GetPool(c.Request.Context(), campaignID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// FundPool adds funds to a campaign's pool.
func (a Api) FundPool(c *gin.Context) {
	campaignID, passed := c.Params.Get("campaign_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "campaign_id is required. pass it in the route /:campaign_id"})
		return
	}

	var req model2.FundPool
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if err := req.ValidateFundPool(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.payout.FundPool(c.Request.Context(), campaignID, req.Amount)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// WithdrawPool returns unspent funds from a campaign's pool to its owner.
func (a Api) WithdrawPool(c *gin.Context) {
	campaignID, passed := c.Params.Get("campaign_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "campaign_id is required. pass it in the route /:campaign_id"})
		return
	}

	var req model2.WithdrawPool
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if err := req.ValidateWithdrawPool(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.payout.WithdrawPool(c.Request.Context(), campaignID, req.Amount)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// IsRewarded reports whether a (campaign, submission) pair is already in the
// contract's rewarded-set.
func (a Api) IsRewarded(c *gin.Context) {
	campaignID, passed := c.Params.Get("campaign_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "campaign_id is required. pass it in the route /:campaign_id"})
		return
	}
	submissionID, passed := c.Params.Get("submission_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "submission_id is required. pass it in the route /:submission_id"})
		return
	}

	rewarded, err := a.payout.IsRewarded(c.Request.Context(), campaignID, submissionID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id":   campaignID,
		"submission_id": submissionID,
		"rewarded":      rewarded,
	})
}
