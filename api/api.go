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

	"github.com/bountybase/payout"
	"github.com/bountybase/payout/api/middleware"
	"github.com/bountybase/payout/config"
)

type Api struct {
	payout *payout.Payout
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/distributions", a.CreateDistribution)
	router.GET("/distributions/:id", a.GetDistribution)
	router.GET("/distributions", a.GetDistributionsByStatus)
	router.POST("/distributions/:id/retry", a.RetryDistribution)
	router.POST("/distributions/recover", a.RecoverStuckDistributions)

	router.POST("/pools", a.CreatePool)
	router.GET("/pools/:campaign_id", a.GetPool)
	router.POST("/pools/:campaign_id/fund", a.FundPool)
	router.POST("/pools/:campaign_id/withdraw", a.WithdrawPool)
	router.GET("/pools/:campaign_id/rewarded/:submission_id", a.IsRewarded)

	return a.router
}

func NewAPI(p *payout.Payout) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"chain_configured": p.ChainConfigured(),
			"signer_address":   p.SignerAddress(),
		})
	})

	return &Api{payout: p, router: r}
}
