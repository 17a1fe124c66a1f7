package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"lanshare/internal/hashing"
)

// Config is fixed at startup and handed to the server by value.
// Keys match the viper/mapstructure names used by flags, env vars
// (LANSHARE_<KEY>) and config files.
type Config struct {
	// Port and Bind form the listen address. Bind is an IP or a host name.
	Port int    `mapstructure:"port" json:"port"`
	Bind string `mapstructure:"bind" json:"bind"`

	// Root is the shared directory. Relative client paths resolve against it.
	Root string `mapstructure:"root" json:"root"`
	// Confine rejects client paths that resolve outside Root.
	Confine bool `mapstructure:"confine" json:"confine"`

	// ShowHidden lists dot files for every request. A request can only turn
	// hidden files on, never off.
	ShowHidden bool `mapstructure:"show_hidden" json:"showHidden"`

	// Hash is the algorithm preselected in the UI.
	Hash string `mapstructure:"hash" json:"hash"`

	// AllowKill exposes POST /kill, which terminates the process.
	AllowKill bool `mapstructure:"allow_kill" json:"allowKill"`

	// WebDAV mounts Root under /dav/.
	WebDAV bool `mapstructure:"webdav" json:"webdav"`

	// QR prints a terminal QR code of the LAN URL at startup.
	QR bool `mapstructure:"qr" json:"qr"`

	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr" json:"metricsAddr,omitempty"`

	LogLevel  string `mapstructure:"log_level" json:"logLevel"`
	LogFormat string `mapstructure:"log_format" json:"logFormat"`
}

const (
	DefaultPort = 9000
	DefaultBind = "0.0.0.0"
)

func Default() Config {
	return Config{
		Port:      DefaultPort,
		Bind:      DefaultBind,
		Root:      ".",
		Confine:   true,
		Hash:      string(hashing.Default),
		AllowKill: true,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// SetDefaults registers Default() with v so that unset flags, env vars and
// config keys fall back to it.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("port", d.Port)
	v.SetDefault("bind", d.Bind)
	v.SetDefault("root", d.Root)
	v.SetDefault("confine", d.Confine)
	v.SetDefault("show_hidden", d.ShowHidden)
	v.SetDefault("hash", d.Hash)
	v.SetDefault("allow_kill", d.AllowKill)
	v.SetDefault("webdav", d.WebDAV)
	v.SetDefault("qr", d.QR)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.Bind) == "" {
		errs = append(errs, errors.New("bind address is empty"))
	} else if net.ParseIP(c.Bind) == nil && !validHostname(c.Bind) {
		errs = append(errs, fmt.Errorf("bind %q is not an IP address or host name", c.Bind))
	}
	if strings.TrimSpace(c.Root) == "" {
		errs = append(errs, errors.New("root is empty"))
	}
	a, err := hashing.Parse(c.Hash)
	if err != nil {
		errs = append(errs, err)
	} else {
		c.Hash = string(a)
	}
	return errors.Join(errs...)
}

// validHostname checks DNS label syntax only. Whether the name resolves is
// left to net.Listen.
func validHostname(h string) bool {
	h = strings.TrimSuffix(h, ".")
	if h == "" || len(h) > 253 {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			default:
				return false
			}
		}
	}
	return true
}

// Addr is the listen address for net.Listen.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}
