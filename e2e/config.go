package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

// Config points the suite at a real deployment. The suite is skipped
// entirely when PROBE_E2E_BASE_URL is unset.
type Config struct {
	BaseURL string `envconfig:"PROBE_E2E_BASE_URL"`
	WSURL   string `envconfig:"PROBE_E2E_WS_URL"`
	// PROBE_E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"PROBE_E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
