// Package config loads hub and node settings from YAML files. Every field
// has a default, so an empty file is a valid configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// HubConfig configures the always-on hub.
type HubConfig struct {
	DeviceID  string `yaml:"device_id"`  // defaults to a generated name
	StorePath string `yaml:"store_path"` // device registry database
	HTTPAddr  string `yaml:"http_addr"`  // status API bind address
	Announce  bool   `yaml:"announce"`   // announce the status API over mDNS
	MCP       bool   `yaml:"mcp"`        // serve MCP tools on stdio
	Group     string `yaml:"group"`      // multicast group of the simulated radio

	GraceMS           uint32 `yaml:"grace_ms"`            // wait before a pairing response
	HelloDurationMS   uint32 `yaml:"hello_duration_ms"`   // pairing response broadcast
	CommandDurationMS uint32 `yaml:"command_duration_ms"` // relay command broadcast
}

// NodeConfig configures a battery-powered node.
type NodeConfig struct {
	HardwareID string `yaml:"hardware_id"` // hex, stands in for the chip's stable id
	StorePath  string `yaml:"store_path"`  // pairing state database
	Group      string `yaml:"group"`       // multicast group of the simulated radio

	UnpairedAdvMS  uint32 `yaml:"unpaired_adv_ms"`  // Hello broadcast while unpaired
	UnpairedScanMS uint32 `yaml:"unpaired_scan_ms"` // listen for a hub Hello
	ReportPeriodMS uint32 `yaml:"report_period_ms"` // paired reporting period
	ReportAdvMS    uint32 `yaml:"report_adv_ms"`    // report broadcast
	CommandScanMS  uint32 `yaml:"command_scan_ms"`  // listen for relay commands
	RetrySleepMS   uint32 `yaml:"retry_sleep_ms"`   // deep sleep between unpaired attempts

	CollectCapacity int `yaml:"collect_capacity"` // bounded listen buffer size
}

func DefaultHub() HubConfig {
	return HubConfig{
		StorePath:         "hub.db",
		HTTPAddr:          ":8080",
		GraceMS:           2000,
		HelloDurationMS:   2000,
		CommandDurationMS: 2000,
	}
}

func DefaultNode() NodeConfig {
	return NodeConfig{
		StorePath:       "node.db",
		UnpairedAdvMS:   2000,
		UnpairedScanMS:  8000,
		ReportPeriodMS:  10000,
		ReportAdvMS:     500,
		CommandScanMS:   3000,
		RetrySleepMS:    30000,
		CollectCapacity: 4,
	}
}

// LoadHub reads a hub config, applying defaults for absent fields. An
// empty path yields the defaults.
func LoadHub(path string) (HubConfig, error) {
	cfg := DefaultHub()
	if path == "" {
		return cfg, nil
	}
	if err := loadYAML(path, &cfg); err != nil {
		return HubConfig{}, err
	}
	return cfg, nil
}

// LoadNode reads a node config, applying defaults for absent fields.
func LoadNode(path string) (NodeConfig, error) {
	cfg := DefaultNode()
	if path == "" {
		return cfg, nil
	}
	if err := loadYAML(path, &cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ms converts a millisecond count to a Duration.
func ms(v uint32) time.Duration { return time.Duration(v) * time.Millisecond }

func (c HubConfig) Grace() time.Duration           { return ms(c.GraceMS) }
func (c HubConfig) HelloDuration() time.Duration   { return ms(c.HelloDurationMS) }
func (c HubConfig) CommandDuration() time.Duration { return ms(c.CommandDurationMS) }

func (c NodeConfig) UnpairedAdv() time.Duration  { return ms(c.UnpairedAdvMS) }
func (c NodeConfig) UnpairedScan() time.Duration { return ms(c.UnpairedScanMS) }
func (c NodeConfig) ReportPeriod() time.Duration { return ms(c.ReportPeriodMS) }
func (c NodeConfig) ReportAdv() time.Duration    { return ms(c.ReportAdvMS) }
func (c NodeConfig) CommandScan() time.Duration  { return ms(c.CommandScanMS) }
func (c NodeConfig) RetrySleep() time.Duration   { return ms(c.RetrySleepMS) }
