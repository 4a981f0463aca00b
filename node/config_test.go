package node

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty_url", func(c *Config) { c.RPCURL = " " }},
		{"bad_scheme", func(c *Config) { c.RPCURL = "ftp://example.com" }},
		{"no_host", func(c *Config) { c.RPCURL = "https://" }},
		{"bad_userpwd", func(c *Config) { c.RPCUserPwd = "nocolon" }},
		{"zero_retries", func(c *Config) { c.Retries = 0 }},
		{"zero_window", func(c *Config) { c.RequestWindow = 0 }},
		{"empty_datadir", func(c *Config) { c.DataDir = "" }},
		{"bad_log_level", func(c *Config) { c.LogLevel = "trace" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ZCASH_RPC", "https://node.example.com:8232")
	t.Setenv("ZCASH_RPC_API_KEY", "key123")
	t.Setenv("USERPWD", "user:pw")
	t.Setenv("ZCASH_RPC_LIMIT", "9")
	t.Setenv("ZCASH_RPC_WINDOW", "30")

	cfg := ConfigFromEnv()
	if cfg.RPCURL != "https://node.example.com:8232" {
		t.Fatalf("url = %s", cfg.RPCURL)
	}
	if cfg.RPCAPIKey != "key123" || cfg.RPCUserPwd != "user:pw" {
		t.Fatalf("credentials = %q %q", cfg.RPCAPIKey, cfg.RPCUserPwd)
	}
	if cfg.RequestLimit != 9 {
		t.Fatalf("limit = %d", cfg.RequestLimit)
	}
	if cfg.RequestWindow != 30*time.Second {
		t.Fatalf("window = %s", cfg.RequestWindow)
	}
}

func TestConfigFromEnvBitcoinFallback(t *testing.T) {
	t.Setenv("ZCASH_RPC", "")
	t.Setenv("BITCOIN_RPC", "https://btc.example.com")
	t.Setenv("BITCOIN_RPC_API_KEY", "btckey")

	cfg := ConfigFromEnv()
	if cfg.RPCURL != "https://btc.example.com" {
		t.Fatalf("url = %s", cfg.RPCURL)
	}
	if cfg.RPCAPIKey != "btckey" {
		t.Fatalf("api key = %s", cfg.RPCAPIKey)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("ZCASH_RPC", "")
	t.Setenv("BITCOIN_RPC", "")
	t.Setenv("DEFAULT_ZCASH_RPC", "")

	cfg := ConfigFromEnv()
	if cfg.RPCURL != defaultRPCURL {
		t.Fatalf("url = %s", cfg.RPCURL)
	}
	if cfg.RequestLimit != 3 || cfg.RequestWindow != 60*time.Second {
		t.Fatalf("throttle defaults = %d %s", cfg.RequestLimit, cfg.RequestWindow)
	}
}
