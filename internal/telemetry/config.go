package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRepo          = "sjuberrafik-clgx/testgenie"
	DefaultAPIURL        = "https://api.github.com"
	DefaultTimeout       = 10 * time.Second
	DefaultLocalCapacity = 50
	LocalFileName        = "testgenie-analytics.json"
)

// Config is resolved once at startup and injected into the emitter.
type Config struct {
	Enabled       bool
	Token         string
	Repo          string
	APIURL        string
	CollectorURL  string
	LocalPath     string
	LocalCapacity int
	Timeout       time.Duration
	Version       string
}

// tokenEnv lists the token sources in order of precedence.
var tokenEnv = []string{"GITHUB_TOKEN", "GH_TOKEN", "TESTGENIE_GITHUB_TOKEN"}

// LoadConfig reads the emitter configuration from the environment.
func LoadConfig(version string) Config {
	v := viper.New()

	v.SetDefault("telemetry", true)
	v.SetDefault("repo", DefaultRepo)
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("local_path", filepath.Join(os.TempDir(), LocalFileName))
	v.SetDefault("local_capacity", DefaultLocalCapacity)
	v.SetDefault("timeout", DefaultTimeout)

	_ = v.BindEnv("telemetry", "TESTGENIE_TELEMETRY")
	_ = v.BindEnv("repo", "TESTGENIE_ANALYTICS_REPO")
	_ = v.BindEnv("api_url", "TESTGENIE_GITHUB_API_URL")
	_ = v.BindEnv("collector_url", "TESTGENIE_COLLECTOR_URL")
	_ = v.BindEnv("local_path", "TESTGENIE_ANALYTICS_FILE")
	_ = v.BindEnv("timeout", "TESTGENIE_TELEMETRY_TIMEOUT")

	cfg := Config{
		Enabled:       v.GetBool("telemetry"),
		Token:         lookupToken(),
		Repo:          v.GetString("repo"),
		APIURL:        strings.TrimRight(v.GetString("api_url"), "/"),
		CollectorURL:  strings.TrimRight(v.GetString("collector_url"), "/"),
		LocalPath:     v.GetString("local_path"),
		LocalCapacity: v.GetInt("local_capacity"),
		Timeout:       v.GetDuration("timeout"),
		Version:       version,
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

// lookupToken returns the first non-empty token; set-but-empty variables are skipped.
func lookupToken() string {
	for _, key := range tokenEnv {
		if t := strings.TrimSpace(os.Getenv(key)); t != "" {
			return t
		}
	}
	return ""
}
