package api

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/client"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port              string
	PostgresDSN       string
	SQLitePath        string
	LedgerConfig      string
	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool
	// TemporalWorker runs the fee worker inside the API process so activities
	// share its simulated custody.
	TemporalWorker bool
	ObserveCron    string
	FeeMintCron    string
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:              envDefault("PORT", "8080"),
		PostgresDSN:       strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		SQLitePath:        strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		LedgerConfig:      envDefault("LEDGER_CONFIG", "config/ledger.yaml"),
		TemporalAddress:   envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace: envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:  isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		TemporalWorker:    !isFalsy(os.Getenv("TEMPORAL_WORKER")),
		ObserveCron:       envDefault("OBSERVE_CRON", "0 */5 * * * *"),
		FeeMintCron:       envDefault("FEE_MINT_CRON", "0 0 0 * * *"),
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{"OBSERVE_CRON": cfg.ObserveCron, "FEE_MINT_CRON": cfg.FeeMintCron} {
		if spec == "off" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return Config{}, fmt.Errorf("%s is not a valid cron spec: %w", name, err)
		}
	}
	if cfg.ObserveCron == "off" {
		cfg.ObserveCron = ""
	}
	if cfg.FeeMintCron == "off" {
		cfg.FeeMintCron = ""
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}

func isFalsy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "0" || value == "false" || value == "no"
}
