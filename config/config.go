package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	NetworkName     string `toml:"NetworkName"`
	ChainID         uint64 `toml:"ChainID"`
	DataDir         string `toml:"DataDir"`
	GenesisFile     string `toml:"GenesisFile"`
	BlockIntervalMs int    `toml:"BlockIntervalMs"`
	MaxBlockTxs     int    `toml:"MaxBlockTxs"`
	MempoolSize     int    `toml:"MempoolSize"`

	Storage    Storage    `toml:"storage"`
	Bridge     Bridge     `toml:"bridge"`
	Governance Governance `toml:"governance"`
	Safeguard  Safeguard  `toml:"safeguard"`
	Router     Router     `toml:"router"`
	Bank       Bank       `toml:"bank"`
	Lane       Lane       `toml:"lane"`
	RPC        RPC        `toml:"rpc"`
	Logging    Logging    `toml:"logging"`
	Indexer    Indexer    `toml:"indexer"`
	Telemetry  Telemetry  `toml:"telemetry"`
}

// Default returns the devnet configuration.
func Default() *Config {
	return &Config{
		NetworkName:     "lanebridge-local",
		ChainID:         1337,
		DataDir:         "./lanebridge-data",
		BlockIntervalMs: 2000,
		MaxBlockTxs:     500,
		MempoolSize:     4096,
		Storage: Storage{
			Backend: "leveldb",
			CacheMB: 64,
		},
		Bridge: Bridge{
			LocalChainID:      "pang",
			BridgedChainID:    "pdrg",
			LaneID:            "0x00000000",
			ModuleID:          "bridge/ring",
			MaxReceivedNonces: 1024,
			RemoteToken:       "0x0000000000000000000000000000000000000000",
		},
		Safeguard: Safeguard{
			CheckInterval: 10,
		},
		Router: Router{
			SelfParachain:       2000,
			UnitWeightCost:      1_000_000_000,
			MaxInstructions:     100,
			UnitWeightPerSecond: 1_000_000_000_000,
			MaxLocalWeight:      10_000_000_000,
		},
		Bank: Bank{
			ExistentialDeposit: "1",
			TxFee:              "0",
		},
		Lane: Lane{
			BaseMessageWeight: 100_000_000,
			ByteWeight:        1_000,
		},
		RPC: RPC{
			Address:         ":8545",
			JWTSecretEnv:    "LANEBRIDGE_JWT_SECRET",
			JWTIssuer:       "lanebridge-operator",
			RateLimitPerSec: 20,
			RateLimitBurst:  40,
			ReadTimeoutSecs: 10,
			MaxConnections:  256,
		},
		Logging: Logging{
			Env:        "dev",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Indexer: Indexer{
			Enabled: true,
			Path:    "events.db",
		},
		Telemetry: Telemetry{
			MetricsAddress: ":9464",
		},
	}
}

// Load loads the configuration from the given path. A default file is
// written when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "lanebridge-local"
	}
	if cfg.Governance.Rescuers == nil {
		cfg.Governance.Rescuers = []string{}
	}
	if cfg.Safeguard.EmergencyOrigins == nil {
		cfg.Safeguard.EmergencyOrigins = []string{}
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath joins relative paths onto the data directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
