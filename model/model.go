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
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes,
// e.g. "dist_..." for distributions and "pool_..." for reward pools.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// IsValidAddress reports whether addr is a syntactically valid chain address:
// the base58 encoding of a 32-byte public key. This is a pure local check and
// performs no chain call.
func IsValidAddress(addr string) bool {
	if addr == "" {
		return false
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(raw) == 32
}

// HashDistribution generates a SHA-256 hash over the fields that identify a
// payout. It is stored alongside the row so operators can detect a local record
// that drifted from what was actually submitted.
func (d *Distribution) HashDistribution() string {
	data := fmt.Sprintf("%s%s%s%d", d.CampaignID, d.SubmissionID, d.Recipient, d.AmountNative)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
