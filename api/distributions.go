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
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/bountybase/payout/api/model"
	"github.com/bountybase/payout/internal/apierror"
	"github.com/bountybase/payout/model"
)

// CreateDistribution settles a payout for a (campaign, submission) pair. With
// async set, the payout is queued and the PENDING row returned immediately;
// otherwise the call blocks until a terminal outcome is known.
//
// Responses:
// - 400 Bad Request: invalid body or rejected input.
// - 503 Service Unavailable: the chain is not configured.
// - 201 Created: a settlement outcome (or the queued row).
func (a Api) CreateDistribution(c *gin.Context) {
	var newDistribution model2.CreateDistribution
	if err := c.ShouldBindJSON(&newDistribution); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := newDistribution.ValidateCreateDistribution(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if newDistribution.Async {
		dist, err := a.payout.EnqueueDistribution(c.Request.Context(), newDistribution.ToDistribution())
		if err != nil {
			c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, dist)
		return
	}

	result, err := a.payout.DistributeReward(c.Request.Context(), newDistribution.ToDistribution())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	switch result.Outcome {
	case model.ResultInvalidInput:
		c.JSON(http.StatusBadRequest, result)
	case model.ResultServiceUnavailable:
		c.JSON(http.StatusServiceUnavailable, result)
	default:
		c.JSON(http.StatusCreated, result)
	}
}

// GetDistribution retrieves a distribution by its ID.
func (a Api) GetDistribution(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.payout.GetDistribution(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetDistributionsByStatus lists distributions filtered by status, paginated
// with limit and offset query parameters.
func (a Api) GetDistributionsByStatus(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status query parameter is required"})
		return
	}

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	resp, err := a.payout.GetDistributionsByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RetryDistribution re-runs settlement for a stranded distribution.
func (a Api) RetryDistribution(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	result, err := a.payout.RetryDistribution(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecoverStuckDistributions triggers an immediate recovery sweep.
func (a Api) RecoverStuckDistributions(c *gin.Context) {
	var req model2.RecoverStuck
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	threshold := time.Duration(req.ThresholdMinutes) * time.Minute
	recovered, err := a.payout.RecoverStuckDistributions(c.Request.Context(), threshold)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recovered": recovered})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
