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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payout.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestInitConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"project_name": "payout-test",
		"data_source": {"dns": "postgres://localhost:5432/payout"},
		"redis": {"dns": "localhost:6379"},
		"chain": {
			"node_url": "http://localhost:8899",
			"contract_address": "reward-ledger-v1",
			"signing_key": "seedseedseed",
			"fiat_rate_native_units": 100
		}
	}`)

	require.NoError(t, InitConfig(path))
	cnf, err := Fetch()
	require.NoError(t, err)

	assert.Equal(t, "payout-test", cnf.ProjectName)
	assert.True(t, cnf.Chain.Configured())
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)

	// Defaults applied for fields the file omits.
	assert.Equal(t, 3, cnf.Retry.MaxAttempts)
	assert.Equal(t, 60*time.Second, cnf.Chain.ConfirmTimeoutDuration())
	assert.Equal(t, 500*time.Millisecond, cnf.Chain.PollInterval())
	assert.Equal(t, 4, cnf.Queue.NumberOfQueues)
}

func TestInitConfigMissingDataSource(t *testing.T) {
	path := writeConfigFile(t, `{"redis": {"dns": "localhost:6379"}}`)
	assert.Error(t, InitConfig(path))
}

func TestInitConfigMissingRedis(t *testing.T) {
	path := writeConfigFile(t, `{"data_source": {"dns": "postgres://localhost:5432/payout"}}`)
	assert.Error(t, InitConfig(path))
}

func TestChainNotConfiguredIsAllowed(t *testing.T) {
	path := writeConfigFile(t, `{
		"data_source": {"dns": "postgres://localhost:5432/payout"},
		"redis": {"dns": "localhost:6379"}
	}`)

	require.NoError(t, InitConfig(path))
	cnf, err := Fetch()
	require.NoError(t, err)
	assert.False(t, cnf.Chain.Configured())
}

func TestChainConfiguredRequiresFiatRate(t *testing.T) {
	// A chain section without a conversion rate can never settle a payout;
	// reject it at startup instead of at the first distribution.
	path := writeConfigFile(t, `{
		"data_source": {"dns": "postgres://localhost:5432/payout"},
		"redis": {"dns": "localhost:6379"},
		"chain": {
			"node_url": "http://localhost:8899",
			"contract_address": "reward-ledger-v1",
			"signing_key": "seedseedseed"
		}
	}`)
	assert.Error(t, InitConfig(path))
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `{
		"data_source": {"dns": "postgres://localhost:5432/payout"},
		"redis": {"dns": "localhost:6379"}
	}`)

	t.Setenv("PAYOUT_CHAIN_NODE_URL", "http://node:8899")
	t.Setenv("PAYOUT_CHAIN_CONTRACT_ADDRESS", "reward-ledger-v1")
	t.Setenv("PAYOUT_CHAIN_SIGNING_KEY", "envseed")
	t.Setenv("PAYOUT_CHAIN_FIAT_RATE", "100")
	t.Setenv("PAYOUT_RETRY_MAX_ATTEMPTS", "7")

	require.NoError(t, InitConfig(path))
	cnf, err := Fetch()
	require.NoError(t, err)

	assert.True(t, cnf.Chain.Configured())
	assert.Equal(t, "http://node:8899", cnf.Chain.NodeURL)
	assert.Equal(t, 7, cnf.Retry.MaxAttempts)
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "mocked"})
	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "mocked", cnf.ProjectName)
}
