package cli

import (
	"fmt"
	"strings"

	"daytrader-api/internal/config"
	"daytrader-api/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Symbols: %s", strings.Join(cfg.Symbols, ", ")),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		fmt.Sprintf("Timezone: %s", cfg.Clock.Timezone),
		fmt.Sprintf("Notifications: %s", notifyLine(cfg)),
		sectionLine("Market config", cfg.Market),
		sectionLine("Strategy config", cfg.Strategy),
	}

	return lines
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func notifyLine(cfg *config.Config) string {
	var channels []string
	if cfg.Notify.Telegram.Enabled {
		channels = append(channels, "telegram")
	}
	if cfg.Notify.Discord.Enabled {
		channels = append(channels, "discord")
	}
	if cfg.Notify.Email.Enabled {
		channels = append(channels, "email")
	}
	if len(channels) == 0 {
		return "log only"
	}
	return strings.Join(channels, ", ")
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
