package config

import (
	"fmt"
	"time"
)

type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	APIURL         string        `mapstructure:"api_url"`
	ICEServers     []string      `mapstructure:"ice_servers"`
	OfferFallback  time.Duration `mapstructure:"offer_fallback"`
	HangupGrace    time.Duration `mapstructure:"hangup_grace"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
}

var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// LoadClient reads config/client.<CONFIG_ENV>.yaml when present. A missing
// file is not an error.
func LoadClient() (*ClientConfig, error) {
	v, _ := newViper("client")

	v.SetDefault("server_url", "ws://localhost:8080/ws")
	v.SetDefault("api_url", "http://localhost:8080/api")
	v.SetDefault("ice_servers", DefaultICEServers)
	v.SetDefault("offer_fallback", "2s")
	v.SetDefault("hangup_grace", "150ms")
	v.SetDefault("connect_timeout", "10s")
	v.SetDefault("log_level", "warn")

	_ = v.ReadInConfig()

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	return &cfg, nil
}
