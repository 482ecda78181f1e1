package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultFile          string = "config.yaml"
	defaultLogLevel      string = "info"
	defaultNameTemplate  string = "tun%d"
	defaultMTU           int    = 1500
	defaultMaxBufferSize int    = 16384
	defaultTableBase     int    = 100

	numDevices = 2
)

// Device describes one endpoint of the splice. Name may be a kernel
// template such as "tun%d"; the concrete name is assigned at creation.
// Address (CIDR) and Peer are optional: when both devices carry them,
// the point-to-point routing setup is applied after the devices are up.
type Device struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Peer    string `yaml:"peer"`
	MTU     int    `yaml:"mtu"`
}

type Config struct {
	MaxBufferSize    int      `yaml:"maxBufferSize"`
	LogLevel         string   `yaml:"logLevel"`
	RoutingTableBase int      `yaml:"routingTableBase"`
	Devices          []Device `yaml:"devices"`
}

func ApplyDefaults(config *Config) {
	if config.MaxBufferSize == 0 {
		config.MaxBufferSize = defaultMaxBufferSize
	}
	if config.LogLevel == "" {
		config.LogLevel = defaultLogLevel
	}
	if config.RoutingTableBase == 0 {
		config.RoutingTableBase = defaultTableBase
	}
	if len(config.Devices) == 0 {
		config.Devices = make([]Device, numDevices)
	}
	for i := range config.Devices {
		if config.Devices[i].Name == "" {
			config.Devices[i].Name = defaultNameTemplate
		}
		if config.Devices[i].MTU == 0 {
			config.Devices[i].MTU = defaultMTU
		}
	}
}

func (c Config) Validate() error {
	if len(c.Devices) != numDevices {
		return fmt.Errorf("exactly %v devices required, got %v", numDevices, len(c.Devices))
	}
	addressed := 0
	for _, dev := range c.Devices {
		if dev.Address != "" || dev.Peer != "" {
			if dev.Address == "" || dev.Peer == "" {
				return fmt.Errorf("device %v needs both address and peer for routing", dev.Name)
			}
			addressed++
		}
	}
	if addressed == 1 {
		return fmt.Errorf("routing requires addresses on both devices")
	}
	return nil
}

// RoutingEnabled reports whether the point-to-point routing setup
// should run; it requires addresses on both devices.
func (c Config) RoutingEnabled() bool {
	for _, dev := range c.Devices {
		if dev.Address == "" {
			return false
		}
	}
	return true
}

func FromCmdline() (*Config, error) {
	filename := flag.String("conf", defaultFile, "Path to the config file")
	flag.Parse()
	return FromFile(*filename)
}

func FromFile(filename string) (*Config, error) {
	var config Config
	content, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist) && filename == defaultFile:
		// Running without a config file is supported: two unnamed
		// devices, no addresses, splice only.
		logrus.Debugf("Config file %v not found - using defaults", filename)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %v - err: %w", filename, err)
	default:
		err = yaml.Unmarshal(content, &config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %v - err: %w", filename, err)
		}
	}

	ApplyDefaults(&config)
	err = config.Validate()
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Parsed config: %+v", config)
	return &config, nil
}
