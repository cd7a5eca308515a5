package strategy

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"daytrader-api/pkg/confkit"
)

// Config assembles every strategy's thresholds plus the engine-level bounds.
// Loaded from etc/strategy.yaml; no threshold is hard-coded in strategy logic.
type Config struct {
	Enabled           []string `yaml:"enabled"`
	MaxPerCycle       int      `yaml:"max_per_cycle"`
	Universe          []string `yaml:"universe"`

	Momentum      MomentumConfig      `yaml:"momentum"`
	VolMispricing VolMispricingConfig `yaml:"vol_mispricing"`
	PairsRatio    PairsRatioConfig    `yaml:"pairs_ratio"`
	FutMomentum   FutMomentumConfig   `yaml:"fut_momentum"`
}

// MomentumConfig drives the options-daytrade variant.
type MomentumConfig struct {
	MinReturn      float64 `yaml:"min_return"`       // minimum intraday move, fraction
	MinVolumeRatio float64 `yaml:"min_volume_ratio"` // session volume vs trailing average
	MaxRSI         float64 `yaml:"max_rsi"`          // skip overbought underlyings; 0 disables
	MinDelta       float64 `yaml:"min_delta"`
	MaxDelta       float64 `yaml:"max_delta"`
	MaxSpreadRatio float64 `yaml:"max_spread_ratio"`
	MinDaysToExp   int     `yaml:"min_days_to_expiry"`
	MaxDaysToExp   int     `yaml:"max_days_to_expiry"`
	NotionalBRL    float64 `yaml:"notional_brl"` // target notional per proposal
}

// VolMispricingConfig drives the implied-vs-realized volatility variant.
type VolMispricingConfig struct {
	MinEdge        float64 `yaml:"min_edge"` // |implied - realized| threshold, vol points
	MaxSpreadRatio float64 `yaml:"max_spread_ratio"`
	MinDaysToExp   int     `yaml:"min_days_to_expiry"`
	MaxDaysToExp   int     `yaml:"max_days_to_expiry"`
	NotionalBRL    float64 `yaml:"notional_brl"`
}

// PairsRatioConfig drives the price-ratio reversion variant.
type PairsRatioConfig struct {
	Pairs       []PairConfig `yaml:"pairs"`
	Window      int          `yaml:"window"`  // trailing ratio window length
	EntryZ      float64      `yaml:"entry_z"` // |z| required to propose
	NotionalBRL float64      `yaml:"notional_brl"`
}

// PairConfig names one traded pair.
type PairConfig struct {
	Long  string `yaml:"long"`
	Short string `yaml:"short"`
}

// FutMomentumConfig drives the index-future breakout variant.
type FutMomentumConfig struct {
	Symbols     []string `yaml:"symbols"`
	Window      int      `yaml:"window"`       // rolling band length
	EMAPeriod   int      `yaml:"ema_period"`   // trend filter; 0 disables
	NotionalBRL float64  `yaml:"notional_brl"`
}

// LoadConfig reads strategy configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open strategy config: %w", err)
	}
	defer f.Close()
	return LoadConfigFromReader(f)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal strategy config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxPerCycle <= 0 {
		c.MaxPerCycle = 50
	}
	if c.PairsRatio.Window <= 0 {
		c.PairsRatio.Window = 30
	}
	if c.FutMomentum.Window <= 0 {
		c.FutMomentum.Window = 20
	}
	for i, s := range c.Universe {
		c.Universe[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Universe) == 0 {
		return fmt.Errorf("strategy config: universe cannot be empty")
	}
	known := map[string]bool{
		"momentum": true, "vol_mispricing": true, "pairs_ratio": true, "fut_momentum": true,
	}
	for _, name := range c.Enabled {
		if !known[name] {
			return fmt.Errorf("strategy config: unknown strategy %q", name)
		}
	}
	for _, p := range c.PairsRatio.Pairs {
		if p.Long == "" || p.Short == "" {
			return fmt.Errorf("strategy config: pair legs cannot be empty")
		}
	}
	return nil
}

// IsEnabled reports whether a strategy name appears in the enabled list.
func (c *Config) IsEnabled(name string) bool {
	for _, n := range c.Enabled {
		if n == name {
			return true
		}
	}
	return false
}
