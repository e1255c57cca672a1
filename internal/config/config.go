// Package config parses the node's process-wide configuration.
// Grounded on the teacher's cmd/addsubnetwork/config.go and
// apiserver/config (flags.NewParser + a required-field struct, network
// config embedded via a shared sub-struct) using
// github.com/jessevdk/go-flags exactly as the teacher does (SPEC_FULL
// §A).
package config

import (
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// NetworkParams mirrors spec §4.6's per-network finality thresholds,
// configured the way the teacher's dagconfig.Params per-network constant
// tables are: a static struct selected by network name.
type NetworkParams struct {
	Minimum                               int
	TransactionMinimum                    int
	MinimumValidatorTransactionGeneration int
	MaximumValidatorPerTrustedEntities    int
}

// Config is the node's full process configuration.
type Config struct {
	RPCServer   string `short:"s" long:"rpcserver" description:"Base-chain RPC server to connect to" required:"true"`
	RPCUser     string `short:"u" long:"rpcuser" description:"Base-chain RPC username"`
	RPCPassword string `short:"P" long:"rpcpass" default-mask:"-" description:"Base-chain RPC password"`
	RPCWorkers  int    `long:"rpcworkers" description:"Number of ChainRpcPool workers" default:"4"`
	DisableTLS  bool   `long:"notls" description:"Disable TLS to the base-chain RPC server"`

	Network string `short:"n" long:"network" description:"Network to operate on (mainnet, testnet, regtest)" default:"mainnet"`
	ChainID uint32 `long:"chainid" description:"Overlay protocol chain id" default:"1"`

	ListenAPI string `long:"listen" description:"JSON-RPC/WebSocket listen address" default:"127.0.0.1:28332"`

	StoreDriver string `long:"store" description:"Store backend (leveldb, sql)" default:"leveldb"`
	StorePath   string `long:"storepath" description:"Store data directory or DSN" default:"./data"`

	MempoolMaxRawBytes  int           `long:"mempool-max-raw" description:"Max raw overlay tx size" default:"400000"`
	MempoolMaxPSBTBytes int           `long:"mempool-max-psbt" description:"Max PSBT size" default:"400000"`
	MempoolExpiry       time.Duration `long:"mempool-expiry" description:"Mempool entry expiry" default:"24h"`

	LogFile  string `long:"logfile" description:"Log file path" default:"./logs/opnetd.log"`
	LogLevel string `long:"loglevel" description:"Log level (trace, debug, info, warn, error)" default:"info"`

	ValidatorIdentity string `long:"validator-identity" description:"Name of the validator identity this node signs witnesses with, if any"`
	ValidatorKeyHex   string `long:"validator-key" description:"Hex-encoded secp256k1 private key backing validator-identity, if any"`

	// TrustedValidators entries are "name:xonlypubkeyhex:entityID", one
	// per configured trusted-set member (spec §4.6).
	TrustedValidators []string `long:"trusted-validator" description:"Trusted validator entry as name:pubkeyhex:entityID, repeatable"`
}

// Parse parses args (or os.Args[1:] when args is nil) into a Config,
// matching the teacher's flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag) idiom.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	// IgnoreUnknown lets cobra subcommands (opnetd reindex's --from, etc.)
	// register their own pflag-based flags without go-flags rejecting them
	// as unrecognized while parsing the same argv.
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag|flags.IgnoreUnknown)
	if args == nil {
		_, err := parser.Parse()
		if err != nil {
			return nil, err
		}
	} else {
		_, err := parser.ParseArgs(args)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RPCWorkers <= 0 {
		return errors.New("rpcworkers must be positive")
	}
	if c.StoreDriver != "leveldb" && c.StoreDriver != "sql" {
		return errors.Errorf("unknown store driver %q", c.StoreDriver)
	}
	return nil
}

// NetworkParamsFor returns the finality thresholds for the configured
// network, mirroring dagconfig.Params's per-network constant tables.
func NetworkParamsFor(network string) NetworkParams {
	switch network {
	case "testnet":
		return NetworkParams{Minimum: 1, TransactionMinimum: 1, MinimumValidatorTransactionGeneration: 1, MaximumValidatorPerTrustedEntities: 1}
	case "regtest":
		return NetworkParams{Minimum: 1, TransactionMinimum: 1, MinimumValidatorTransactionGeneration: 1, MaximumValidatorPerTrustedEntities: 1}
	default: // mainnet
		return NetworkParams{Minimum: 3, TransactionMinimum: 2, MinimumValidatorTransactionGeneration: 2, MaximumValidatorPerTrustedEntities: 3}
	}
}
