package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
webhook:
  auth_token: hook-secret
providers:
  - name: helius
    mainnet_url: https://mainnet.helius-rpc.com
    auth: url
    monthly_quota: 1000000
    enabled: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Routing.Policy != "cost_optimized" {
		t.Fatalf("policy = %s", cfg.Routing.Policy)
	}
	if cfg.Routing.FailureThreshold != 3 {
		t.Fatalf("failure threshold = %d", cfg.Routing.FailureThreshold)
	}
	if cfg.Routing.Cooldown.Std() != 5*time.Minute {
		t.Fatalf("cooldown = %v", cfg.Routing.Cooldown)
	}
	if cfg.Usage.AlertThreshold != 0.8 {
		t.Fatalf("alert threshold = %v", cfg.Usage.AlertThreshold)
	}
	if cfg.Cache.TTL.Hot.Std() != 5*time.Second || cfg.Cache.TTL.Frozen.Std() != 24*time.Hour {
		t.Fatalf("ttls = %+v", cfg.Cache.TTL)
	}
	if cfg.Batch.MaxSize != 100 || cfg.Batch.MaxWait.Std() != 2*time.Second {
		t.Fatalf("batch = %+v", cfg.Batch)
	}
	if cfg.Webhook.RatePerMin != 120 {
		t.Fatalf("rate per min = %v", cfg.Webhook.RatePerMin)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	yaml := `
environment: production
network: devnet
server:
  port: 9090
routing:
  policy: round_robin
  failure_threshold: 5
webhook:
  auth_token: hook-secret
  rate_per_min: 60
providers:
  - name: quicknode
    mainnet_url: https://example.quiknode.pro
    auth: url
    monthly_quota: 500
    enabled: true
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Routing.Policy != "round_robin" {
		t.Fatalf("policy = %s", cfg.Routing.Policy)
	}
	if cfg.Routing.FailureThreshold != 5 {
		t.Fatalf("failure threshold = %d", cfg.Routing.FailureThreshold)
	}
	if cfg.Webhook.RatePerMin != 60 {
		t.Fatalf("rate per min = %v", cfg.Webhook.RatePerMin)
	}
}

func TestDurationStringsParse(t *testing.T) {
	yaml := minimalYAML + `
routing:
  policy: cost_optimized
  request_timeout: 2500ms
  cooldown: 90s
cache:
  ttl:
    hot: 1s
    frozen: 12h
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Routing.RequestTimeout.Std() != 2500*time.Millisecond {
		t.Fatalf("request timeout = %v", cfg.Routing.RequestTimeout)
	}
	if cfg.Routing.Cooldown.Std() != 90*time.Second {
		t.Fatalf("cooldown = %v", cfg.Routing.Cooldown)
	}
	if cfg.Cache.TTL.Hot.Std() != time.Second || cfg.Cache.TTL.Frozen.Std() != 12*time.Hour {
		t.Fatalf("ttls = %+v", cfg.Cache.TTL)
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	yaml := minimalYAML + `
routing:
  cooldown: sometimes
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatal("expected parse error for invalid duration")
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "missing environment",
			yaml:    strings.Replace(minimalYAML, "environment: test", "", 1),
			wantSub: "environment is required",
		},
		{
			name: "no providers",
			yaml: `
environment: test
webhook:
  auth_token: tok
providers: []
`,
			wantSub: "at least one provider",
		},
		{
			name: "duplicate provider",
			yaml: `
environment: test
webhook:
  auth_token: tok
providers:
  - name: helius
    mainnet_url: https://a
    monthly_quota: 10
  - name: helius
    mainnet_url: https://b
    monthly_quota: 10
`,
			wantSub: "duplicate provider",
		},
		{
			name: "missing mainnet url",
			yaml: `
environment: test
webhook:
  auth_token: tok
providers:
  - name: helius
    monthly_quota: 10
`,
			wantSub: "mainnet_url is required",
		},
		{
			name: "non-positive quota",
			yaml: `
environment: test
webhook:
  auth_token: tok
providers:
  - name: helius
    mainnet_url: https://a
    monthly_quota: 0
`,
			wantSub: "monthly_quota must be positive",
		},
		{
			name:    "bad policy",
			yaml:    minimalYAML + "\nrouting:\n  policy: cheapest\n",
			wantSub: "routing.policy",
		},
		{
			name:    "missing auth token",
			yaml:    strings.Replace(minimalYAML, "auth_token: hook-secret", "auth_token: \"\"", 1),
			wantSub: "auth_token is required",
		},
		{
			name:    "threshold out of range",
			yaml:    minimalYAML + "\nusage:\n  alert_threshold: 1.5\n",
			wantSub: "alert_threshold",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("err = %v, want substring %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SOLGATE_NETWORK", "devnet")
	t.Setenv("SOLGATE_ROUTING_POLICY", "performance_first")
	t.Setenv("WEBHOOK_AUTH_TOKEN", "env-secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_HOST", "redis.internal")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}

	if cfg.Network != "devnet" {
		t.Fatalf("network = %s", cfg.Network)
	}
	if cfg.Routing.Policy != "performance_first" {
		t.Fatalf("policy = %s", cfg.Routing.Policy)
	}
	if cfg.Webhook.AuthToken != "env-secret" {
		t.Fatalf("auth token = %s", cfg.Webhook.AuthToken)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "k1:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Cache.Redis.Host != "redis.internal" || cfg.AlertQueue.Host != "redis.internal" {
		t.Fatalf("redis host override not applied: %+v", cfg.Cache.Redis)
	}
}
