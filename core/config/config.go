package config

import (
	"net"
	"net/netip"
	"time"

	"github.com/gogf/gf/v2/encoding/gjson"
	"github.com/gogf/gf/v2/os/gfile"
	"github.com/pkg/errors"

	"github.com/wlynxg/P4DB/core/protocol"
	mlog "github.com/wlynxg/P4DB/pkgs/log"
)

type Config struct {
	path string

	// Interface is matched as a substring against interface names.
	Interface   string
	Promiscuous bool

	// generator
	Target     string
	DstMAC     string
	Count      int
	PoolSize   int
	IDRange    int
	Interval   string
	RelationID int
	Aggregate  int
	Payload    string
	Write      string

	// observer
	Sources []string
	Read    string
	Dump    string
	Metrics string

	LogConfigs []mlog.CoreConfig
}

func (c *Config) Save() error {
	if c.path == "" {
		return nil
	}
	return gfile.PutBytes(c.path, gjson.New(c).MustToJsonIndent())
}

// Load reads path, fills in defaults for missing keys and writes the result
// back. An empty path yields the defaults without touching the filesystem.
func Load(path string) (*Config, error) {
	var (
		cfg  = &Config{}
		load *gjson.Json
		err  error
	)
	if path != "" && gfile.Exists(path) {
		load, err = gjson.Load(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}

		if err := load.Scan(cfg); err != nil {
			return nil, errors.Wrapf(err, "scan %s", path)
		}
	}

	cfg.path = path
	defaultConfig(cfg, load)

	if err := cfg.Save(); err != nil {
		return nil, errors.Wrapf(err, "save %s", path)
	}
	return cfg, nil
}

func defaultConfig(cfg *Config, load *gjson.Json) {
	set := func(key string) bool {
		return load != nil && load.Contains(key)
	}

	if cfg.Interface == "" {
		cfg.Interface = "veth1"
	}

	if cfg.Target == "" {
		cfg.Target = "10.0.2.2"
	}

	if cfg.DstMAC == "" {
		cfg.DstMAC = protocol.BroadcastMAC.String()
	}

	if cfg.Count == 0 {
		cfg.Count = 10
	}

	if cfg.PoolSize == 0 {
		cfg.PoolSize = 4
	}

	if cfg.IDRange == 0 {
		cfg.IDRange = 1000
	}

	if cfg.Interval == "" {
		cfg.Interval = time.Second.String()
	}

	if !set("RelationID") {
		cfg.RelationID = 1
	}

	if !set("Payload") {
		cfg.Payload = "P4 is cool"
	}
}

// Validate checks the values that the generator and observer cannot recover from.
func (c *Config) Validate() error {
	if c.Count < 0 {
		return errors.Errorf("count %d is negative", c.Count)
	}
	if c.PoolSize <= 0 || c.IDRange <= 0 || c.PoolSize > c.IDRange {
		return errors.Errorf("cannot sample %d distinct ids from [0,%d)", c.PoolSize, c.IDRange)
	}
	if c.RelationID < 0 || c.RelationID > protocol.MaxRelationID {
		return &protocol.RangeError{Field: "relationId", Value: uint(c.RelationID), Max: protocol.MaxRelationID}
	}
	if c.Aggregate < 0 || c.Aggregate > protocol.MaxAggregate {
		return &protocol.RangeError{Field: "aggregate", Value: uint(c.Aggregate), Max: protocol.MaxAggregate}
	}
	if _, err := c.IntervalDuration(); err != nil {
		return err
	}
	if _, err := c.HardwareAddr(); err != nil {
		return err
	}
	if _, err := c.SourcePrefixes(); err != nil {
		return err
	}
	return nil
}

func (c *Config) IntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, errors.Wrapf(err, "interval %q", c.Interval)
	}
	if d < 0 {
		return 0, errors.Errorf("interval %s is negative", d)
	}
	return d, nil
}

func (c *Config) HardwareAddr() (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(c.DstMAC)
	if err != nil {
		return nil, errors.Wrapf(err, "destination mac %q", c.DstMAC)
	}
	if len(mac) != 6 {
		return nil, errors.Errorf("destination mac %q is not an ethernet address", c.DstMAC)
	}
	return mac, nil
}

func (c *Config) SourcePrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.Sources))
	for _, s := range c.Sources {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, errors.Wrapf(err, "source %q", s)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes, nil
}
