package config

import (
	"os"
	"time"

	"blockvault/internal/pinning"
	"blockvault/pkg/database/postgres"
	"blockvault/pkg/database/redis"

	"github.com/ilyakaznacheev/cleanenv"
)

// ChainConfig describes the Ethereum endpoint and the deployed file registry.
type ChainConfig struct {
	RPCURL          string        `env:"ETH_RPC_URL" env-default:"http://localhost:8545"`
	ChainID         int64         `env:"ETH_CHAIN_ID" env-default:"1337"`
	ContractAddress string        `env:"CONTRACT_ADDRESS"`
	KeystoreDir     string        `env:"KEYSTORE_DIR" env-default:"./keystore"`
	KeystorePass    string        `env:"KEYSTORE_PASSPHRASE" env-default:""`
	ConfirmTimeout  time.Duration `env:"CONFIRM_TIMEOUT" env-default:"90s"`
}

// ClientConfig covers everything the standalone client needs.
type ClientConfig struct {
	PinBackend string `env:"PIN_BACKEND" env-default:"pinata"`
	Chain      ChainConfig
	Pinata     pinning.PinataConfig
	MinIO      pinning.MinIOConfig
	Postgres   postgres.Config
	Redis      redis.RedisConfig
}

// GatewayConfig covers the HTTP gateway on top of the client stack.
type GatewayConfig struct {
	HTTPPort   string        `env:"GATEWAY_PORT" env-default:"8082"`
	JWTSecret  string        `env:"JWT_TOKEN"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" env-default:"3h"`
	NonceTTL   time.Duration `env:"NONCE_TTL" env-default:"5m"`
	PinBackend string        `env:"PIN_BACKEND" env-default:"pinata"`
	Chain      ChainConfig
	Pinata     pinning.PinataConfig
	MinIO      pinning.MinIOConfig
	Postgres   postgres.Config
	Redis      redis.RedisConfig
}

func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadGatewayConfig() (*GatewayConfig, error) {
	var cfg GatewayConfig
	if err := load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// load reads ./.env when present, the process environment otherwise.
func load(cfg interface{}) error {
	if _, err := os.Stat(".env"); err == nil {
		return cleanenv.ReadConfig(".env", cfg)
	}
	return cleanenv.ReadEnv(cfg)
}
