// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nlc9-swarm/internal/agent"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Swarm tunes the coordinator: operating mode, consensus, and safety rails.
type Swarm struct {
	Mode               string  `yaml:"mode"` // CENTRALIZED|DECENTRALIZED|HYBRID
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
	BallotTTLSecs      int     `yaml:"ballot_ttl_secs"` // negative disables expiry
	TickIntervalMs     int     `yaml:"tick_interval_ms"`
	EmergencyStop      bool    `yaml:"emergency_stop"`
	ProfitSharing      bool    `yaml:"profit_sharing"`
}

// BallotTTL converts the configured seconds into the coordinator's duration.
func (s Swarm) BallotTTL() time.Duration {
	if s.BallotTTLSecs < 0 {
		return -1
	}
	return time.Duration(s.BallotTTLSecs) * time.Second
}

// TickInterval converts the configured milliseconds into a duration.
func (s Swarm) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalMs) * time.Millisecond
}

// Market selects the price source feeding the fleet.
type Market struct {
	Provider string   `yaml:"provider"` // stub|binance
	Pairs    []string `yaml:"pairs"`
	Symbols  []string `yaml:"symbols"` // binance stream symbols, e.g. solusdt
	Seed     int64    `yaml:"seed"`    // stub walk seed; 0 derives from the clock
}

// Execution selects the trade venue and its tuning.
type Execution struct {
	Venue       string  `yaml:"venue"` // paper|jupiter
	FailureRate float64 `yaml:"failure_rate"`
	SlippageBps int     `yaml:"slippage_bps"`
	FillsPath   string  `yaml:"fills_path"`
	Dex         Dex     `yaml:"dex"`
}

// Dex defines network endpoints and defaults for decentralized execution.
type Dex struct {
	Chain       string             `yaml:"chain"` // e.g. "solana"
	RpcURL      string             `yaml:"rpc_url"`
	Commitment  string             `yaml:"commitment"`   // processed|confirmed|finalized
	JupiterBase string             `yaml:"jupiter_base"` // https://quote-api.jup.ag
	Mints       map[string]DexPair `yaml:"mints"`        // trading pair -> token mints
}

// DexPair names the on-chain token mints behind a trading pair.
type DexPair struct {
	Input          string `yaml:"input"`
	Output         string `yaml:"output"`
	InputDecimals  int    `yaml:"input_decimals"`
	OutputDecimals int    `yaml:"output_decimals"`
}

// Gateway configures the protocol HTTP/WebSocket service.
type Gateway struct {
	Addr        string `yaml:"addr"`
	ReadTimeout int    `yaml:"read_timeout_ms"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App            `yaml:"app"`
	Swarm     Swarm          `yaml:"swarm"`
	Agents    []agent.Config `yaml:"agents"`
	Market    Market         `yaml:"market"`
	Execution Execution      `yaml:"execution"`
	Gateway   Gateway        `yaml:"gateway"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the coordinator cannot run.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("config: at least one agent required")
	}
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("config: agent %d missing id", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("config: duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}
	if c.Swarm.ConsensusThreshold < 0 || c.Swarm.ConsensusThreshold > 1 {
		return fmt.Errorf("config: consensus_threshold %v out of [0,1]", c.Swarm.ConsensusThreshold)
	}
	if c.Execution.Venue == "jupiter" {
		for _, pair := range c.Market.Pairs {
			if _, ok := c.Execution.Dex.Mints[pair]; !ok {
				return fmt.Errorf("config: execution.dex.mints has no entry for pair %q", pair)
			}
		}
	}
	return nil
}
