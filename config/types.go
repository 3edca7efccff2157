package config

import "strings"

// Bridge configures the asset bridging state machine.
type Bridge struct {
	LocalChainID      string `toml:"LocalChainID"`
	BridgedChainID    string `toml:"BridgedChainID"`
	LaneID            string `toml:"LaneID"`
	ModuleID          string `toml:"ModuleID"`
	MaxReceivedNonces int    `toml:"MaxReceivedNonces"`
	// RemoteToken is the hex address of the token contract on the remote
	// chain that releases backing funds.
	RemoteToken string `toml:"RemoteToken"`
}

// Governance configures remote governance and the rescue path.
type Governance struct {
	Rescuers []string `toml:"Rescuers"`
}

// Safeguard configures the emergency finality monitor.
type Safeguard struct {
	CheckInterval    uint64   `toml:"CheckInterval"`
	EmergencyOrigins []string `toml:"EmergencyOrigins"`
}

// RouterTarget assigns a fee rate to a destination location.
type RouterTarget struct {
	Location string `toml:"Location" yaml:"location"`
	Rate     string `toml:"Rate" yaml:"rate"`
}

// Router configures the cross-chain message router.
type Router struct {
	SelfParachain       uint32         `toml:"SelfParachain"`
	UnitWeightCost      uint64         `toml:"UnitWeightCost"`
	MaxInstructions     int            `toml:"MaxInstructions"`
	UnitWeightPerSecond uint64         `toml:"UnitWeightPerSecond"`
	MaxLocalWeight      uint64         `toml:"MaxLocalWeight"`
	Targets             []RouterTarget `toml:"Targets"`
}

// Bank configures the native currency.
type Bank struct {
	ExistentialDeposit string `toml:"ExistentialDeposit"`
	TxFee              string `toml:"TxFee"`
}

// Lane configures the devnet message lane.
type Lane struct {
	BaseMessageWeight uint64 `toml:"BaseMessageWeight"`
	ByteWeight        uint64 `toml:"ByteWeight"`
}

// RPC configures the JSON-RPC server.
type RPC struct {
	Address         string  `toml:"Address"`
	JWTSecretEnv    string  `toml:"JWTSecretEnv"`
	JWTIssuer       string  `toml:"JWTIssuer"`
	RateLimitPerSec float64 `toml:"RateLimitPerSec"`
	RateLimitBurst  int     `toml:"RateLimitBurst"`
	ReadTimeoutSecs int     `toml:"ReadTimeoutSecs"`
	MaxConnections  int     `toml:"MaxConnections"`
}

// Logging configures structured log output.
type Logging struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Indexer configures the event index. Path is a sqlite file or a postgres URL.
type Indexer struct {
	Enabled bool   `toml:"Enabled"`
	Path    string `toml:"Path"`
}

// Telemetry configures metrics and tracing exporters.
type Telemetry struct {
	MetricsAddress string            `toml:"MetricsAddress"`
	OTLPEndpoint   string            `toml:"OTLPEndpoint"`
	Insecure       bool              `toml:"Insecure"`
	Headers        map[string]string `toml:"Headers"`
}

// Storage selects the state backend.
type Storage struct {
	Backend   string `toml:"Backend"`
	CacheMB   int    `toml:"CacheMB"`
	OpenFiles int    `toml:"OpenFiles"`
}

// Pauses toggles the normal dispatch path per module. Root, rescue and
// emergency dispatches ignore them.
type Pauses struct {
	Bridge    bool `json:"bridge" yaml:"bridge"`
	Router    bool `json:"router" yaml:"router"`
	RemoteGov bool `json:"remotegov" yaml:"remotegov"`
	Bank      bool `json:"bank" yaml:"bank"`
}

// IsPaused reports whether module is paused.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case "bridge":
		return p.Bridge
	case "router":
		return p.Router
	case "remotegov":
		return p.RemoteGov
	case "bank":
		return p.Bank
	default:
		return false
	}
}
