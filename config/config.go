// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package config loads the optional YAML configuration file and fills in the
// built-in defaults of each network.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/stakesync/thor"
)

// Network holds the endpoints and contracts of one network.
type Network struct {
	// Nodes are probed in order. When empty, Discovery is asked for nodes.
	Nodes     []string `yaml:"nodes,omitempty"`
	Discovery string   `yaml:"discovery,omitempty"`
	Treasury  string   `yaml:"treasury,omitempty"`
	Referrer  string   `yaml:"referrer,omitempty"`
	Bridge    string   `yaml:"bridge,omitempty"`
	Manifest  string   `yaml:"manifest,omitempty"`
}

type Intervals struct {
	Update       time.Duration `yaml:"update,omitempty"`
	Retry        time.Duration `yaml:"retry,omitempty"`
	Poll         time.Duration `yaml:"poll,omitempty"`
	PollAttempts int           `yaml:"pollAttempts,omitempty"`
	TxValidity   time.Duration `yaml:"txValidity,omitempty"`
}

type Config struct {
	Networks  map[string]*Network `yaml:"networks,omitempty"`
	Intervals Intervals           `yaml:"intervals,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Networks: map[string]*Network{
			thor.MainNet.Name: {
				Nodes:  []string{"https://mainnet.vechain.org"},
				Bridge: "http://127.0.0.1:8670",
			},
			thor.TestNet.Name: {
				Nodes:  []string{"https://testnet.vechain.org"},
				Bridge: "http://127.0.0.1:8670",
			},
		},
		Intervals: Intervals{
			Update:       30 * time.Second,
			Retry:        6 * time.Second,
			Poll:         6 * time.Second,
			PollAttempts: 60,
			TxValidity:   5 * time.Minute,
		},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Wrapf(err, "parse config %v", path)
	}
	cfg.merge(&file)
	return cfg, nil
}

func (c *Config) merge(o *Config) {
	for name, n := range o.Networks {
		if n == nil {
			continue
		}
		base, ok := c.Networks[name]
		if !ok {
			base = &Network{}
			c.Networks[name] = base
		}
		if len(n.Nodes) > 0 {
			base.Nodes = n.Nodes
		}
		if n.Discovery != "" {
			base.Discovery = n.Discovery
			// an explicit discovery service replaces the default nodes
			if len(n.Nodes) == 0 {
				base.Nodes = nil
			}
		}
		setString(&base.Treasury, n.Treasury)
		setString(&base.Referrer, n.Referrer)
		setString(&base.Bridge, n.Bridge)
		setString(&base.Manifest, n.Manifest)
	}

	setDuration(&c.Intervals.Update, o.Intervals.Update)
	setDuration(&c.Intervals.Retry, o.Intervals.Retry)
	setDuration(&c.Intervals.Poll, o.Intervals.Poll)
	setDuration(&c.Intervals.TxValidity, o.Intervals.TxValidity)
	if o.Intervals.PollAttempts > 0 {
		c.Intervals.PollAttempts = o.Intervals.PollAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// Resolved is the validated configuration of the selected network.
type Resolved struct {
	Network   *thor.Network
	Nodes     []string
	Discovery string
	Treasury  thor.Address
	Referrer  *thor.Address
	Bridge    string
	Manifest  string
	Intervals Intervals
}

// Resolve validates the settings of network.
func (c *Config) Resolve(network *thor.Network) (*Resolved, error) {
	n, ok := c.Networks[network.Name]
	if !ok {
		return nil, fmt.Errorf("network %v not configured", network.Name)
	}
	if len(n.Nodes) == 0 && n.Discovery == "" {
		return nil, fmt.Errorf("network %v: neither nodes nor discovery configured", network.Name)
	}
	if n.Treasury == "" {
		return nil, fmt.Errorf("network %v: treasury address not configured", network.Name)
	}
	treasury, err := thor.ParseAddress(n.Treasury)
	if err != nil {
		return nil, errors.Wrapf(err, "network %v: treasury", network.Name)
	}
	if n.Bridge == "" {
		return nil, fmt.Errorf("network %v: bridge not configured", network.Name)
	}

	r := &Resolved{
		Network:   network,
		Nodes:     n.Nodes,
		Discovery: n.Discovery,
		Treasury:  treasury,
		Bridge:    n.Bridge,
		Manifest:  n.Manifest,
		Intervals: c.Intervals,
	}
	if n.Referrer != "" {
		referrer, err := thor.ParseAddress(n.Referrer)
		if err != nil {
			return nil, errors.Wrapf(err, "network %v: referrer", network.Name)
		}
		r.Referrer = &referrer
	}

	iv := c.Intervals
	if iv.Update <= 0 || iv.Retry <= 0 || iv.Poll <= 0 || iv.TxValidity <= 0 || iv.PollAttempts <= 0 {
		return nil, errors.New("intervals must be positive")
	}
	return r, nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
