package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Session SessionConfig `mapstructure:"session"`
	Auth    AuthConfig    `mapstructure:"auth"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
}

// SessionConfig controls the server-side session store and its delivery cookie.
type SessionConfig struct {
	CookieName   string        `mapstructure:"cookieName"`
	TTL          time.Duration `mapstructure:"ttl"`
	CookieSecure bool          `mapstructure:"cookieSecure"`
}

// AuthConfig controls credential policy and the admin reset-token flow.
type AuthConfig struct {
	MinPasswordLength int           `mapstructure:"minPasswordLength"`
	ResetTokenSecret  string        `mapstructure:"resetTokenSecret"`
	ResetTokenTTL     time.Duration `mapstructure:"resetTokenTTL"`
	ResetTokenIssuer  string        `mapstructure:"resetTokenIssuer"`
}

// OAuthConfig holds the optional Google provider login settings.
type OAuthConfig struct {
	SessionSecret  string `mapstructure:"sessionSecret"`
	GoogleKey      string `mapstructure:"googleKey"`
	GoogleSecret   string `mapstructure:"googleSecret"`
	GoogleCallback string `mapstructure:"googleCallback"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config, fall back to the embedded copy
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}

	if config.Auth.MinPasswordLength <= 0 {
		config.Auth.MinPasswordLength = 6
	}
	if config.Session.TTL <= 0 {
		config.Session.TTL = 24 * time.Hour
	}
	return config, nil
}
