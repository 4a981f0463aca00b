// Package node drives the proving-input pipeline: it pulls Zcash block
// data over JSON-RPC, folds it into chain state snapshots, and formats
// batches for the Cairo program.
package node

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	RPCURL     string `json:"rpc_url"`
	RPCUserPwd string `json:"-"` // user:password, kept out of config dumps
	RPCAPIKey  string `json:"-"`

	RequestLimit  int           `json:"request_limit"`
	RequestWindow time.Duration `json:"request_window"`
	Retries       int           `json:"retries"`
	RetryDelay    time.Duration `json:"retry_delay"`

	DataDir  string `json:"data_dir"`
	ProofDir string `json:"proof_dir"`
	LogLevel string `json:"log_level"`
}

const defaultRPCURL = "https://rpc.mainnet.ztarknet.cash"

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".zoro"
	}
	return filepath.Join(home, ".zoro")
}

func DefaultConfig() Config {
	return Config{
		RPCURL:        defaultRPCURL,
		RequestLimit:  3,
		RequestWindow: 60 * time.Second,
		Retries:       3,
		RetryDelay:    2 * time.Second,
		DataDir:       DefaultDataDir(),
		ProofDir:      ".proofs",
		LogLevel:      "info",
	}
}

// ConfigFromEnv layers the ZCASH_RPC_* environment variables over the
// defaults. BITCOIN_RPC* names are honored as fallbacks for operators
// running against bitcoind-compatible endpoints.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("DEFAULT_ZCASH_RPC"); v != "" {
		cfg.RPCURL = v
	}
	if v := firstEnv("ZCASH_RPC", "BITCOIN_RPC"); v != "" {
		cfg.RPCURL = v
	}
	cfg.RPCAPIKey = firstEnv("ZCASH_RPC_API_KEY", "BITCOIN_RPC_API_KEY")
	cfg.RPCUserPwd = os.Getenv("USERPWD")
	if v := os.Getenv("ZCASH_RPC_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestLimit = n
		}
	}
	if v := os.Getenv("ZCASH_RPC_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestWindow = time.Duration(n) * time.Second
		}
	}
	return cfg
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return errors.New("rpc_url is required")
	}
	u, err := url.Parse(cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid rpc_url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("rpc_url missing host")
	}
	if cfg.RPCUserPwd != "" && !strings.Contains(cfg.RPCUserPwd, ":") {
		return errors.New("userpwd must be user:password")
	}
	if cfg.Retries <= 0 {
		return errors.New("retries must be > 0")
	}
	if cfg.RequestWindow <= 0 {
		return errors.New("request_window must be > 0")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	return nil
}
