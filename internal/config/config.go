package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// ErrConfiguration wraps every problem found while loading the environment.
// The process is expected to exit when Load returns it.
var ErrConfiguration = errors.New("configuration error")

const (
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

// Config is the relay's runtime configuration, read from the environment.
type Config struct {
	RPCURL          string `envconfig:"RPC_URL" required:"true"`
	PrivateKey      string `envconfig:"PRIVATE_KEY" required:"true"`
	ContractAddress string `envconfig:"CONTRACT_ADDRESS" required:"true"`
	Port            string `envconfig:"PORT"`

	ChainID       uint64        `envconfig:"CHAIN_ID"`
	CallTimeout   time.Duration `envconfig:"CALL_TIMEOUT" default:"10s"`
	SubmitTimeout time.Duration `envconfig:"SUBMIT_TIMEOUT" default:"2m"`

	JournalDriver string `envconfig:"JOURNAL_DRIVER" default:"sqlite"`
	DatabaseURL   string `envconfig:"DATABASE_URL" default:"relay.db"`

	RecordCacheSize int           `envconfig:"RECORD_CACHE_SIZE" default:"500"`
	RecordCacheTTL  time.Duration `envconfig:"RECORD_CACHE_TTL" default:"30s"`

	APIToken string `envconfig:"API_TOKEN"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	signer   *ecdsa.PrivateKey
	contract common.Address
	level    zap.AtomicLevel
}

// Load reads the environment and validates it. Values that are needed to talk
// to the chain (key, contract address) are parsed here so a bad deployment
// fails at startup instead of on the first request.
func Load() (*Config, error) {
	return load(true)
}

// LoadClient is Load for tools that talk to the chain but never listen, so
// PORT is not required.
func LoadClient() (*Config, error) {
	return load(false)
}

func load(serve bool) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := cfg.validate(serve); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate(serve bool) error {
	u, err := url.Parse(c.RPCURL)
	if err != nil || (u.Scheme == "" && !strings.HasSuffix(c.RPCURL, ".ipc")) {
		return fmt.Errorf("%w: RPC_URL %q is not an endpoint URL", ErrConfiguration, c.RPCURL)
	}

	// 私钥不能出现在错误信息里
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(c.PrivateKey), "0x"))
	if err != nil {
		return fmt.Errorf("%w: PRIVATE_KEY is not a valid secp256k1 key", ErrConfiguration)
	}
	c.signer = key

	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("%w: CONTRACT_ADDRESS %q is not a hex address", ErrConfiguration, c.ContractAddress)
	}
	c.contract = common.HexToAddress(c.ContractAddress)
	if c.contract == (common.Address{}) {
		return fmt.Errorf("%w: CONTRACT_ADDRESS is the zero address", ErrConfiguration)
	}

	if serve {
		port, err := strconv.Atoi(c.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("%w: PORT %q is not a valid port", ErrConfiguration, c.Port)
		}
	}

	if c.CallTimeout <= 0 || c.SubmitTimeout <= 0 {
		return fmt.Errorf("%w: CALL_TIMEOUT and SUBMIT_TIMEOUT must be positive", ErrConfiguration)
	}

	switch c.JournalDriver {
	case JournalSQLite, JournalPostgres:
	default:
		return fmt.Errorf("%w: JOURNAL_DRIVER %q is not one of sqlite, postgres", ErrConfiguration, c.JournalDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is empty", ErrConfiguration)
	}

	if c.RecordCacheSize <= 0 {
		return fmt.Errorf("%w: RECORD_CACHE_SIZE must be positive", ErrConfiguration)
	}

	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %v", ErrConfiguration, err)
	}
	c.level = level

	return nil
}

// SignerKey returns the parsed signing key.
func (c *Config) SignerKey() *ecdsa.PrivateKey {
	return c.signer
}

// Contract returns the parsed contract address.
func (c *Config) Contract() common.Address {
	return c.contract
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = c.level
	return zc.Build()
}
