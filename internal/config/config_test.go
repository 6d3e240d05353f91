package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"blockvault/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLoadGatewayConfig_FromEnvFile(t *testing.T) {
	td := t.TempDir()

	envContent := `GATEWAY_PORT=9090
JWT_TOKEN=very_very_secret_key
TOKEN_TTL=2h

ETH_RPC_URL=http://localhost:8545
ETH_CHAIN_ID=31337
CONTRACT_ADDRESS=0x5FbDB2315678afecb367f032d93F642f64180aa3

PINATA_API_KEY=pk
PINATA_SECRET_API_KEY=sk

POSTGRES_HOST=localhost
POSTGRES_PORT=5433
POSTGRES_USER=vault
POSTGRES_PASSWORD=2529
POSTGRES_DB=vault

REDIS_HOST=localhost
REDIS_PORT=6380
REDIS_PASSWORD=
REDIS_DB=0
`
	if err := os.WriteFile(filepath.Join(td, ".env"), []byte(envContent), 0o644); err != nil {
		t.Fatal(err)
	}

	origWd, _ := os.Getwd()
	defer os.Chdir(origWd)
	if err := os.Chdir(td); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadGatewayConfig()
	assert.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "very_very_secret_key", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.NonceTTL)

	assert.Equal(t, int64(31337), cfg.Chain.ChainID)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", cfg.Chain.ContractAddress)
	assert.Equal(t, 90*time.Second, cfg.Chain.ConfirmTimeout)

	assert.Equal(t, "pk", cfg.Pinata.APIKey)
	assert.Equal(t, "https://api.pinata.cloud", cfg.Pinata.Endpoint)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, uint16(5433), cfg.Postgres.Port)
	assert.Equal(t, "vault", cfg.Postgres.Username)
	assert.Equal(t, "2529", cfg.Postgres.Password)
	assert.Equal(t, "vault", cfg.Postgres.Database)

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "6380", cfg.Redis.Port)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.Db)
}

func TestLoadClientConfig_DefaultsWithoutEnvFile(t *testing.T) {
	// cleanenv exports .env contents into the process environment, so
	// variables loaded by other tests would leak into this one.
	for _, key := range []string{
		"GATEWAY_PORT", "JWT_TOKEN", "TOKEN_TTL",
		"ETH_RPC_URL", "ETH_CHAIN_ID", "CONTRACT_ADDRESS",
		"PINATA_API_KEY", "PINATA_SECRET_API_KEY",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
	} {
		if v, ok := os.LookupEnv(key); ok {
			t.Setenv(key, v)
			os.Unsetenv(key)
		}
	}

	td := t.TempDir()
	origWd, _ := os.Getwd()
	defer os.Chdir(origWd)
	if err := os.Chdir(td); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadClientConfig()
	assert.NoError(t, err)

	assert.Equal(t, "http://localhost:8545", cfg.Chain.RPCURL)
	assert.Equal(t, int64(1337), cfg.Chain.ChainID)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/", cfg.Pinata.GatewayURL)
	assert.Equal(t, uint16(5432), cfg.Postgres.Port)
	assert.Equal(t, "6379", cfg.Redis.Port)
}
