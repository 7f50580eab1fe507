package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	// Config holds all environment-sourced settings. Absence of a required
	// secret is a fatal startup condition, not a per-request error.
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default), TEST, QA, PROD
		AppName  string

		FrontendBaseURL  string
		DefaultFromEmail string
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Token    TokenConfig
		OTP      OTPConfig
		Database DatabaseConfig
		Storage  StorageConfig
	}

	ServerConfig struct {
		Host string
		Port int
	}

	// TokenConfig carries a distinct secret and expiry per token purpose.
	// A leaked reset token must never be replayable as a session token.
	TokenConfig struct {
		AccessSecret  string
		AccessExpiry  time.Duration
		RefreshSecret string
		RefreshExpiry time.Duration
		ResendSecret  string
		ResendExpiry  time.Duration
		ResetSecret   string
		ResetExpiry   time.Duration
	}

	OTPConfig struct {
		Expiry time.Duration
	}

	DatabaseConfig struct {
		Engine     string
		Name       string
		User       string
		Password   string
		Host       string
		Port       int
		DisableTLS bool
	}

	StorageConfig struct {
		Region    string
		Bucket    string
		Endpoint  string
		AccessKey string
		SecretKey string
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewConfig loads configuration from the environment (and an optional
// config/.env.<env> file) into a Config.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("serverHost", "0.0.0.0")
	v.SetDefault("serverPort", 8000)
	v.SetDefault("accessTokenExpiry", 15*time.Minute)
	v.SetDefault("refreshTokenExpiry", 7*24*time.Hour)
	v.SetDefault("resendTokenExpiry", 24*time.Hour)
	v.SetDefault("resetTokenExpiry", 60*time.Minute)
	v.SetDefault("otpExpiry", 2*time.Minute)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "darasa")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbDisableTLS", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: %w", err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		AppName:          v.GetString("appName"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host: v.GetString("serverHost"),
			Port: v.GetInt("serverPort"),
		},
		Token: TokenConfig{
			AccessSecret:  v.GetString("accessTokenSecret"),
			AccessExpiry:  v.GetDuration("accessTokenExpiry"),
			RefreshSecret: v.GetString("refreshTokenSecret"),
			RefreshExpiry: v.GetDuration("refreshTokenExpiry"),
			ResendSecret:  v.GetString("resendTokenSecret"),
			ResendExpiry:  v.GetDuration("resendTokenExpiry"),
			ResetSecret:   v.GetString("resetTokenSecret"),
			ResetExpiry:   v.GetDuration("resetTokenExpiry"),
		},
		OTP: OTPConfig{
			Expiry: v.GetDuration("otpExpiry"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("dbEngine"),
			Name:       v.GetString("dbName"),
			User:       v.GetString("dbUser"),
			Password:   v.GetString("dbPassword"),
			Host:       v.GetString("dbHost"),
			Port:       v.GetInt("dbPort"),
			DisableTLS: v.GetBool("dbDisableTLS"),
		},
		Storage: StorageConfig{
			Region:    v.GetString("s3Region"),
			Bucket:    v.GetString("s3Bucket"),
			Endpoint:  v.GetString("s3Endpoint"),
			AccessKey: v.GetString("s3AccessKey"),
			SecretKey: v.GetString("s3SecretKey"),
		},
	}

	if err := conf.check(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) check() error {
	if c.Debug || c.TestMode {
		// DEV/TEST fall back to throwaway secrets
		fallback := "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy"
		secrets := []*string{
			&c.Token.AccessSecret, &c.Token.RefreshSecret,
			&c.Token.ResendSecret, &c.Token.ResetSecret,
		}
		for i, s := range secrets {
			if *s == "" {
				*s = fmt.Sprintf("%s.%d", fallback, i)
			}
		}
		return nil
	}

	missing := make([]string, 0, 4)
	for name, val := range map[string]string{
		"ACCESSTOKENSECRET":  c.Token.AccessSecret,
		"REFRESHTOKENSECRET": c.Token.RefreshSecret,
		"RESENDTOKENSECRET":  c.Token.ResendSecret,
		"RESETTOKENSECRET":   c.Token.ResetSecret,
	} {
		if val == "" {
			missing = append(missing, c.Env+"_"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required secrets: %s", strings.Join(missing, ", "))
	}
	return nil
}
