// Package udtcfg loads a udt.Config from a YAML file, falling back to an
// embedded default document when the file is missing or empty. This lets an
// operator override MSS, buffer sizes, and timers without touching code,
// following the same load-or-default convention the source this engine is
// adapted from uses for its own peer configuration.
package udtcfg

import (
	_ "embed" // required for embedding the default config document
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udt-go/udt/udt"
)

//go:embed default.yaml
var defaultConfig []byte

// fileConfig mirrors the scalar, YAML-safe subset of udt.Config. Fields that
// can't round-trip through YAML (CanAccept, CongestionForSocket, Metrics) are left to
// the caller to set on the returned *udt.Config after loading.
type fileConfig struct {
	CanAcceptDgram     bool          `yaml:"CanAcceptDgram"`
	CanAcceptStream    bool          `yaml:"CanAcceptStream"`
	ListenReplayWindow time.Duration `yaml:"ListenReplayWindow"`
	MaxPacketSize      uint          `yaml:"MaxPacketSize"`
	MaxBandwidth       uint64        `yaml:"MaxBandwidth"`
	LingerTime         time.Duration `yaml:"LingerTime"`
	MaxFlowWinSize     uint          `yaml:"MaxFlowWinSize"`
	SynTime            time.Duration `yaml:"SynTime"`

	SendBufferSize uint  `yaml:"SendBufferSize"`
	RecvBufferSize uint  `yaml:"RecvBufferSize"`
	FlightFlagSize uint  `yaml:"FlightFlagSize"`
	Rendezvous     bool  `yaml:"Rendezvous"`
	InitialSeqNum  *int32 `yaml:"InitialSeqNum"`
	ReuseAddr      bool  `yaml:"ReuseAddr"`

	ConnectTimeout time.Duration `yaml:"ConnectTimeout"`
	Stream         bool          `yaml:"Stream"`
}

// Load reads the YAML configuration file at path and returns a *udt.Config
// built from it. A missing or empty file falls back to the embedded default
// document rather than erroring, matching how the adapted source tolerates
// a fresh install with no config file yet written.
func Load(path string) (*udt.Config, error) {
	data, err := readOrDefault(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(defaultConfig, &fc); err != nil {
		return nil, fmt.Errorf("udtcfg: parsing embedded default: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("udtcfg: parsing %s: %w", path, err)
	}

	cfg := udt.DefaultConfig()
	cfg.CanAcceptDgram = fc.CanAcceptDgram
	cfg.CanAcceptStream = fc.CanAcceptStream
	cfg.ListenReplayWindow = fc.ListenReplayWindow
	cfg.MaxPacketSize = fc.MaxPacketSize
	cfg.MaxBandwidth = fc.MaxBandwidth
	cfg.LingerTime = fc.LingerTime
	cfg.MaxFlowWinSize = fc.MaxFlowWinSize
	cfg.SynTime = fc.SynTime
	cfg.SendBufferSize = fc.SendBufferSize
	cfg.RecvBufferSize = fc.RecvBufferSize
	cfg.FlightFlagSize = fc.FlightFlagSize
	cfg.Rendezvous = fc.Rendezvous
	cfg.InitialSeqNum = fc.InitialSeqNum
	cfg.ReuseAddr = fc.ReuseAddr
	cfg.ConnectTimeout = fc.ConnectTimeout
	cfg.Stream = fc.Stream

	return cfg, nil
}

func readOrDefault(path string) ([]byte, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig, nil
		}
		return nil, fmt.Errorf("udtcfg: stat %s: %w", path, err)
	}
	if stat.Size() == 0 {
		return defaultConfig, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("udtcfg: reading %s: %w", path, err)
	}
	return data, nil
}
