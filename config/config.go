// Package config loads weavemint's YAML configuration.
//
// A file only needs the keys it changes; everything else keeps the value from
// Default. String paths have environment variables expanded after loading.
//
// Example:
//
//	budget:
//	  max_bytes: 102400
//	  max_iterations: 10
//	gateway:
//	  target: localhost:7420
//	  reference_prefix: http://localhost:7421/
//	wallet:
//	  key_file: ~/.weavemint/keys/default.key
//	  signature_alg: ed25519
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/generate"
	"weavemint.dev/weavemint/keys"
	"weavemint.dev/weavemint/logging"
	"weavemint.dev/weavemint/mint"
	"weavemint.dev/weavemint/publish"
	"weavemint.dev/weavemint/weave"
)

// EnvPath names the variable Load reads the config path from.
const EnvPath = "WEAVEMINT_CONFIG"

type Config struct {
	Budget     BudgetConfig     `yaml:"budget"`
	App        AppConfig        `yaml:"app"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Generation GenerationConfig `yaml:"generation"`
	Wallet     WalletConfig     `yaml:"wallet"`
	Mint       MintConfig       `yaml:"mint"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
}

type BudgetConfig struct {
	MaxBytes      int64 `yaml:"max_bytes"`
	MaxIterations int   `yaml:"max_iterations"`
}

// AppConfig fills the reserved upload tags.
type AppConfig struct {
	Name    string `yaml:"name"`
	Purpose string `yaml:"purpose"`
}

type GatewayConfig struct {
	Target          string        `yaml:"target"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxMsgBytes     int           `yaml:"max_msg_bytes"`
	ReferencePrefix string        `yaml:"reference_prefix"`
}

type GenerationConfig struct {
	Endpoint string `yaml:"endpoint"`
	ModelID  string `yaml:"model_id"`
	// TokenEnv names the variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`
}

// WalletConfig locates the signing seed: SeedEnv wins over KeyFile.
type WalletConfig struct {
	KeyFile      string `yaml:"key_file"`
	SeedEnv      string `yaml:"seed_env"`
	SignatureAlg string `yaml:"signature_alg"`
}

type MintConfig struct {
	RPCURL   string `yaml:"rpc_url"`
	Contract string `yaml:"contract"`
	ChainID  int64  `yaml:"chain_id"`
	// KeyEnv names the variable holding the hex private key.
	KeyEnv string `yaml:"key_env"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File receives JSON records in addition to stderr when set.
	File string `yaml:"file"`
}

// ServerConfig is read by the gateway daemon.
type ServerConfig struct {
	Listen     string `yaml:"listen"`
	HTTPListen string `yaml:"http_listen"`
}

// StorageConfig selects a registered storage backend. Options mirror the
// backend's flag names, e.g. {"localfs-dir": "/var/lib/weavemint"}.
type StorageConfig struct {
	Backend string            `yaml:"backend"`
	Options map[string]string `yaml:"options,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Budget: BudgetConfig{
			MaxBytes:      publish.DefaultMaxBytes,
			MaxIterations: publish.DefaultMaxIterations,
		},
		App: AppConfig{
			Name:    weave.DefaultAppName,
			Purpose: weave.DefaultFunction,
		},
		Gateway: GatewayConfig{
			Target:          "localhost:7420",
			DialTimeout:     5 * time.Second,
			ReferencePrefix: "http://localhost:7421/",
		},
		Generation: GenerationConfig{
			Endpoint: generate.DefaultEndpoint,
			ModelID:  generate.DefaultModelID,
			TokenEnv: generate.DefaultTokenEnv,
		},
		Wallet: WalletConfig{
			KeyFile:      filepath.Join(homeDir, ".weavemint", "keys", "default.key"),
			SignatureAlg: keys.AlgEd25519,
		},
		Mint: MintConfig{
			RPCURL:   mint.DefaultRPCURL,
			Contract: mint.DefaultContract,
			ChainID:  mint.DefaultChainID,
			KeyEnv:   mint.DefaultKeyEnv,
		},
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Listen:     "127.0.0.1:7420",
			HTTPListen: "127.0.0.1:7421",
		},
		Storage: StorageConfig{Backend: "localfs"},
	}
}

// Load reads the file named by $WEAVEMINT_CONFIG, or returns Default when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile overlays the YAML file at path onto Default and validates the
// result.
func LoadFile(path string) (*Config, error) {
	const op = "config.load"
	if path == "" {
		return nil, fault.New(fault.KindConfig, op, "empty config path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfig, op, "reading "+path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfig, op, path, err)
	}
	return cfg, nil
}

// Parse is LoadFile for in-memory YAML.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fault.Wrap(fault.KindConfig, "config.parse", "decoding yaml", err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Wallet.KeyFile = expandPath(c.Wallet.KeyFile)
	c.Log.File = expandPath(c.Log.File)
	for k, v := range c.Storage.Options {
		c.Storage.Options[k] = expandPath(v)
	}
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	const op = "config.validate"
	var problems []string
	if c.Budget.MaxBytes <= 0 {
		problems = append(problems, fmt.Sprintf("budget.max_bytes must be positive, got %d", c.Budget.MaxBytes))
	}
	if c.Budget.MaxIterations < 1 {
		problems = append(problems, fmt.Sprintf("budget.max_iterations must be at least 1, got %d", c.Budget.MaxIterations))
	}
	if c.App.Name == "" {
		problems = append(problems, "app.name is required")
	}
	switch c.Wallet.SignatureAlg {
	case "", keys.AlgEd25519, keys.AlgDilithium3:
	default:
		problems = append(problems, fmt.Sprintf("wallet.signature_alg %q is not supported", c.Wallet.SignatureAlg))
	}
	if c.Gateway.MaxMsgBytes < 0 {
		problems = append(problems, "gateway.max_msg_bytes must not be negative")
	}
	if c.Mint.ChainID < 0 {
		problems = append(problems, "mint.chain_id must not be negative")
	}
	if err := logging.SetLevel(new(slog.LevelVar), c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if len(problems) > 0 {
		return fault.New(fault.KindConfig, op, strings.Join(problems, "; "))
	}
	return nil
}

// Bytes marshals c back to YAML.
func (c *Config) Bytes() ([]byte, error) {
	return yaml.Marshal(c)
}
