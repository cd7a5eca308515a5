package config

import (
	"daytrader-api/pkg/confkit"
	"daytrader-api/pkg/market"
	"daytrader-api/pkg/strategy"
)

// MustLoadMarket loads etc/market.yaml from the project root and panics on
// error. It isolates market config so tests that only need providers do not
// have to stand up the full application config.
func MustLoadMarket() *market.Config {
	cfg, err := market.LoadConfig(confkit.MustProjectPath("etc/market.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// MustBuildMarketProviders loads market config from the default path
// and builds provider instances; returns the map and default provider name.
func MustBuildMarketProviders() (map[string]market.Provider, string) {
	cfg := MustLoadMarket()
	providers, err := cfg.BuildProviders()
	if err != nil {
		panic(err)
	}
	return providers, cfg.Default
}

// MustLoadStrategy loads etc/strategy.yaml from the project root and panics
// on error.
func MustLoadStrategy() *strategy.Config {
	cfg, err := strategy.LoadConfig(confkit.MustProjectPath("etc/strategy.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}
