package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "GOSIGNAL"

// command-line flags that override config keys when set.
var flagBindings = map[string]string{
	"server.address": "addr",
	"log.level":      "log-level",
	"log.format":     "log-format",
}

// Load reads configuration from a file and environment variables.
// fileName is either a bare config name looked up in the working directory
// or a path to a config file. flags may be nil.
func Load(logger *slog.Logger, fileName string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	setDefaults(v)

	// 2. Set config file details
	if filepath.Ext(fileName) != "" || strings.ContainsRune(fileName, filepath.Separator) {
		v.SetConfigFile(fileName)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".") // look for config in the working directory
	}

	// 3. Set up environment variable handling
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ice.serversJSON", EnvPrefix+"_ICE_SERVERS_JSON"); err != nil {
		return nil, err
	}

	// 4. Flags win over file and env
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %q: %w", name, err)
				}
			}
		}
	}

	// 5. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	} else {
		logger.Info("Loaded config file", slog.String("path", v.ConfigFileUsed()))
	}

	// 6. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.trustProxy", false)
	v.SetDefault("server.connectionLimit.maxPerIP", 0)
	v.SetDefault("server.connectionLimit.mode", "reject")
	v.SetDefault("transport.pingInterval", "25s")
	v.SetDefault("transport.pongTimeout", "10s")
	v.SetDefault("transport.writeTimeout", "10s")
	v.SetDefault("transport.sendBufferSize", 256)
	v.SetDefault("transport.maxMessageSize", 64*1024)
	v.SetDefault("relay.defaultUsername", "Anonymous")
	v.SetDefault("relay.uniqueUsernames", false)
	v.SetDefault("relay.rateLimit", "")
	v.SetDefault("ice.servers", defaultICEServers())
	v.SetDefault("ice.serversJSON", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func defaultICEServers() []map[string]any {
	return []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
		{"urls": []string{"stun:stun1.l.google.com:19302"}},
	}
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Server.ConnectionLimit.Mode {
	case "reject", "cycle":
	default:
		return fmt.Errorf("server.connectionLimit.mode must be \"reject\" or \"cycle\", got %q", c.Server.ConnectionLimit.Mode)
	}
	if c.Transport.PingInterval < 0 {
		return errors.New("transport.pingInterval must not be negative")
	}
	if c.Transport.PingInterval > 0 && c.Transport.PongTimeout <= 0 {
		return errors.New("transport.pongTimeout must be positive when keepalive is enabled")
	}
	if c.Transport.SendBufferSize <= 0 {
		return errors.New("transport.sendBufferSize must be positive")
	}
	if _, err := ParseRate(c.Relay.RateLimit); err != nil {
		return fmt.Errorf("relay.rateLimit: %w", err)
	}
	if _, err := c.ICE.ICEServers(); err != nil {
		return fmt.Errorf("ice: %w", err)
	}
	return nil
}
