package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Relay     RelayConfig
	ICE       ICEConfig `mapstructure:"ice"`
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	ShutdownTimeout time.Duration         `mapstructure:"shutdownTimeout"`
	AllowedOrigins  []string              `mapstructure:"allowedOrigins"` // empty allows any origin
	TrustProxy      bool                  `mapstructure:"trustProxy"`     // take the client IP from X-Forwarded-For
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int    `mapstructure:"maxPerIP"` // <= 0 disables the limiter
	Mode     string `mapstructure:"mode"`     // "reject" or "cycle"
}

type TransportConfig struct {
	PingInterval   time.Duration `mapstructure:"pingInterval"` // 0 disables keepalive pings
	PongTimeout    time.Duration `mapstructure:"pongTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	SendBufferSize int           `mapstructure:"sendBufferSize"`
	MaxMessageSize int64         `mapstructure:"maxMessageSize"`
}

type RelayConfig struct {
	DefaultUsername string `mapstructure:"defaultUsername"`
	UniqueUsernames bool   `mapstructure:"uniqueUsernames"`
	// per-connection event budget, e.g. "50/s". Empty disables limiting.
	RateLimit string `mapstructure:"rateLimit"`
}

type ICEConfig struct {
	Servers []ICEServerConfig `mapstructure:"servers"`
	// JSON array of RTCIceServer objects; takes precedence over Servers when set.
	ServersJSON string `mapstructure:"serversJSON"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}
