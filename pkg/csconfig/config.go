package csconfig

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config is the top-level netsentinel configuration, loaded from a single
// yaml file. Each section has a Load* method that applies defaults and
// validates, so a partial file is always usable.
type Config struct {
	Common    *CommonCfg    `yaml:"common,omitempty"`
	LogSource *LogSourceCfg `yaml:"log_source,omitempty"`
	Enrich    *EnrichCfg    `yaml:"enrich,omitempty"`
	Database  *DatabaseCfg  `yaml:"database,omitempty"`
	API       *APICfg       `yaml:"api,omitempty"`
	Schedule  *ScheduleCfg  `yaml:"schedule,omitempty"`
}

type CommonCfg struct {
	LogMedia  string     `yaml:"log_media,omitempty"` // stdout or file
	LogDir    string     `yaml:"log_dir,omitempty"`
	LogLevel  *log.Level `yaml:"log_level,omitempty"`
	LogFormat string     `yaml:"log_format,omitempty"` // text or json
}

type LogSourceCfg struct {
	LogPath    string `yaml:"log_path"`
	RollupPath string `yaml:"rollup_path,omitempty"`
	// IngressInterface/EgressInterface are the interface names whose IN=/OUT=
	// markers make a line attributable (typically the WAN-facing interface).
	IngressInterface string `yaml:"ingress_interface,omitempty"`
	EgressInterface  string `yaml:"egress_interface,omitempty"`
	Window           string `yaml:"window,omitempty"`

	WindowDuration time.Duration `yaml:"-"`
}

type EnrichCfg struct {
	GeoIPPath     string `yaml:"geoip_path,omitempty"`
	ServicesPath  string `yaml:"services_path,omitempty"`
	CacheSize     int    `yaml:"cache_size,omitempty"`
	LookupTimeout string `yaml:"lookup_timeout,omitempty"`

	LookupTimeoutDuration time.Duration `yaml:"-"`
}

type DatabaseCfg struct {
	DbPath    string `yaml:"db_path,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
}

type APICfg struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
	TableLimit int    `yaml:"table_limit,omitempty"`
}

type ScheduleCfg struct {
	Interval string `yaml:"interval,omitempty"`

	IntervalDuration time.Duration `yaml:"-"`
}

// NewConfig reads path (when non-empty), then applies defaults to every
// section. A missing file is an error; a missing section is not.
func NewConfig(path string) (*Config, error) {
	c := &Config{}

	if path != "" {
		rcfg, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read '%s': %w", path, err)
		}
		if err := yaml.UnmarshalStrict(rcfg, c); err != nil {
			return nil, fmt.Errorf("parse '%s': %w", path, err)
		}
	}

	if err := c.Load(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) Load() error {
	if err := c.LoadCommon(); err != nil {
		return err
	}
	if err := c.LoadLogSource(); err != nil {
		return err
	}
	if err := c.LoadEnrich(); err != nil {
		return err
	}
	if err := c.LoadDatabase(); err != nil {
		return err
	}
	if err := c.LoadAPI(); err != nil {
		return err
	}
	return c.LoadSchedule()
}

func (c *Config) LoadCommon() error {
	if c.Common == nil {
		c.Common = &CommonCfg{}
	}
	if c.Common.LogMedia == "" {
		c.Common.LogMedia = "stdout"
	}
	if c.Common.LogFormat == "" {
		c.Common.LogFormat = "text"
	}
	if c.Common.LogLevel == nil {
		level := log.InfoLevel
		c.Common.LogLevel = &level
	}
	if c.Common.LogMedia == "file" && c.Common.LogDir == "" {
		c.Common.LogDir = "/var/log"
	}
	return nil
}

func (c *Config) LoadLogSource() error {
	if c.LogSource == nil {
		c.LogSource = &LogSourceCfg{}
	}

	ls := c.LogSource

	if ls.LogPath == "" {
		ls.LogPath = "/var/log/router.log"
	}
	if ls.RollupPath == "" {
		ls.RollupPath = "/var/lib/netsentinel/grouped-router.log"
	}
	if ls.IngressInterface == "" {
		ls.IngressInterface = "eth0"
	}
	if ls.EgressInterface == "" {
		ls.EgressInterface = "eth0"
	}
	if ls.Window == "" {
		ls.Window = "168h"
	}

	window, err := time.ParseDuration(ls.Window)
	if err != nil {
		return fmt.Errorf("invalid log_source.window: %w", err)
	}
	if window <= 0 {
		return fmt.Errorf("log_source.window must be positive")
	}
	ls.WindowDuration = window

	return nil
}

func (c *Config) LoadEnrich() error {
	if c.Enrich == nil {
		c.Enrich = &EnrichCfg{}
	}

	ec := c.Enrich

	if ec.GeoIPPath == "" {
		ec.GeoIPPath = "/var/lib/netsentinel/GeoLite2-City.mmdb"
	}
	if ec.CacheSize == 0 {
		ec.CacheSize = 8192
	}
	if ec.LookupTimeout == "" {
		ec.LookupTimeout = "2s"
	}

	timeout, err := time.ParseDuration(ec.LookupTimeout)
	if err != nil {
		return fmt.Errorf("invalid enrich.lookup_timeout: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("enrich.lookup_timeout must be positive")
	}
	ec.LookupTimeoutDuration = timeout

	return nil
}

func (c *Config) LoadDatabase() error {
	if c.Database == nil {
		c.Database = &DatabaseCfg{}
	}
	if c.Database.DbPath == "" {
		c.Database.DbPath = "/var/lib/netsentinel/netsentinel.db"
	}
	if c.Database.BatchSize <= 0 {
		c.Database.BatchSize = 200
	}
	return nil
}

func (c *Config) LoadAPI() error {
	if c.API == nil {
		c.API = &APICfg{}
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = "127.0.0.1:8088"
	}
	if c.API.TableLimit <= 0 {
		c.API.TableLimit = 500
	}
	return nil
}

func (c *Config) LoadSchedule() error {
	if c.Schedule == nil {
		c.Schedule = &ScheduleCfg{}
	}
	if c.Schedule.Interval == "" {
		c.Schedule.Interval = "15m"
	}

	interval, err := time.ParseDuration(c.Schedule.Interval)
	if err != nil {
		return fmt.Errorf("invalid schedule.interval: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive")
	}
	c.Schedule.IntervalDuration = interval

	return nil
}
