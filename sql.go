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

import "embed"

// SQLFiles holds the settlement-ledger schema migrations, applied with the
// migrate command. The unique constraint on (campaign_id, submission_id) in
// the distributions table is the off-chain half of the idempotency invariant;
// the contract's rewarded-set is the other half.
//
//go:embed sql/*.sql
var SQLFiles embed.FS
