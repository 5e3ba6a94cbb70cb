package main

import (
	"github.com/BurntSushi/toml"
	"github.com/influxdata/influxdb-cluster/cluster"
	"github.com/influxdata/influxdb-cluster/logger"
	"github.com/influxdata/influxdb-cluster/services/meta"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config represents the configuration read by nodetool.
type Config struct {
	Cluster cluster.Config `toml:"cluster"`
	Meta    *meta.Config   `toml:"meta"`
	Logging logger.Config  `toml:"logging"`
}

// NewConfig returns an instance of Config with reasonable defaults.
func NewConfig() *Config {
	return &Config{
		Cluster: cluster.NewConfig(),
		Meta:    meta.NewConfig(),
		Logging: logger.NewConfig(),
	}
}

// ParseConfigFile parses a configuration file at a given path. Settings
// missing from the file keep their defaults.
func ParseConfigFile(path string) (*Config, error) {
	c := NewConfig()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return c, nil
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	var err error
	if e := c.Cluster.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "cluster"))
	}
	if e := c.Meta.Validate(); e != nil {
		err = multierr.Append(err, e)
	}
	return err
}
