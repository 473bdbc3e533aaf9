// Package config loads matexport configuration from a YAML file, a .env file,
// the environment and command-line overrides, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every automatically bound environment variable,
// e.g. MATEXPORT_LOG_LEVEL for log.level.
const EnvPrefix = "MATEXPORT"

// Token cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Matching Materials authentication flows.
const (
	FlowDevice            = "device"
	FlowClientCredentials = "client_credentials"
	FlowStatic            = "static"
)

// Config is the complete matexport configuration.
type Config struct {
	Log               Log               `mapstructure:"log" yaml:"log"   validate:"required"`
	HTTP              HTTP              `mapstructure:"http" yaml:"http" validate:"required"`
	Output            Output            `mapstructure:"output" yaml:"output"`
	Metrics           Metrics           `mapstructure:"metrics" yaml:"metrics"`
	TokenCache        TokenCache        `mapstructure:"token_cache" yaml:"token_cache"`
	Duspot            Duspot            `mapstructure:"duspot" yaml:"duspot"`
	Insert            Insert            `mapstructure:"insert" yaml:"insert"`
	MatchingMaterials MatchingMaterials `mapstructure:"matching_materials" yaml:"matching_materials"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"   validate:"required,oneof=debug info warn error"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

type HTTP struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"         validate:"required,gt=0"`
	UserAgent  string        `mapstructure:"user_agent" yaml:"user_agent"   validate:"required"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
}

type Output struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type Metrics struct {
	// Textfile is a node_exporter textfile path; empty disables the export.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

type TokenCache struct {
	Backend   string `mapstructure:"backend" yaml:"backend"       validate:"oneof=file redis none"`
	Path      string `mapstructure:"path" yaml:"path"             validate:"required_if=Backend file"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr" validate:"required_if=Backend redis"`
}

type Duspot struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"         validate:"required,url"`
	LoginURL    string        `mapstructure:"login_url" yaml:"login_url"       validate:"required,url"`
	Token       string        `mapstructure:"token" yaml:"token"`
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"         validate:"required_with=Username"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"   validate:"min=1,max=16"`
	PageTimeout time.Duration `mapstructure:"page_timeout" yaml:"page_timeout" validate:"gt=0"`
}

type Insert struct {
	GraphQLURL string `mapstructure:"graphql_url" yaml:"graphql_url" validate:"required,url"`
	FeedURL    string `mapstructure:"feed_url" yaml:"feed_url"       validate:"required,url"`
}

// MatchingMaterials credentials are checked when the provider is built, so
// commands for other sources run without them.
type MatchingMaterials struct {
	URL          string   `mapstructure:"url" yaml:"url"   validate:"required,url"`
	Flow         string   `mapstructure:"flow" yaml:"flow" validate:"oneof=device client_credentials static"`
	ClientID     string   `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string   `mapstructure:"client_secret" yaml:"client_secret"`
	Tenant       string   `mapstructure:"tenant" yaml:"tenant"`
	Scopes       []string `mapstructure:"scopes" yaml:"scopes"`
	Token        string   `mapstructure:"token" yaml:"token"`
}

// Options control where Load looks for configuration.
type Options struct {
	// File is an explicit config file. Empty searches matexport.yaml in the
	// working directory and $HOME/.matexport.
	File string

	// EnvFile is loaded into the process environment before reading
	// variables. Missing files are ignored. Defaults to ".env".
	EnvFile string

	// Overrides take precedence over every other source (command-line flags).
	Overrides map[string]any
}

// credentialEnv binds the variable names used by existing scripts and
// .env files in addition to the prefixed names.
var credentialEnv = map[string][]string{
	"duspot.token":                     {"DUSPOT_TOKEN"},
	"duspot.username":                  {"DUSPOT_USERNAME"},
	"duspot.password":                  {"DUSPOT_PASSWORD"},
	"matching_materials.client_id":     {"MM_CLIENT_ID"},
	"matching_materials.client_secret": {"MM_CLIENT_SECRET"},
	"matching_materials.token":         {"MM_TOKEN"},
	"matching_materials.tenant":        {"MM_TENANT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.user_agent", "matexport/dev (+https://github.com/Sternrassler/matexport)")
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("output.dir", ".")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("token_cache.backend", BackendFile)
	v.SetDefault("token_cache.path", ".token_cache.json")
	v.SetDefault("token_cache.redis_addr", "")
	v.SetDefault("duspot.base_url", "https://api.duspot.nl/api/products")
	v.SetDefault("duspot.login_url", "https://api.duspot.nl/api/login_check")
	v.SetDefault("duspot.token", "")
	v.SetDefault("duspot.username", "")
	v.SetDefault("duspot.password", "")
	v.SetDefault("duspot.concurrency", 1)
	v.SetDefault("duspot.page_timeout", 30*time.Second)
	v.SetDefault("insert.graphql_url", "https://app.insert.nl/graphql")
	v.SetDefault("insert.feed_url", "https://marktplaats.insert.nl/feed/")
	v.SetDefault("matching_materials.url", "https://tradingrawmaterial.azurewebsites.net/api/buildingmaterialrequest/getByFilter")
	v.SetDefault("matching_materials.flow", FlowDevice)
	v.SetDefault("matching_materials.client_id", "")
	v.SetDefault("matching_materials.client_secret", "")
	v.SetDefault("matching_materials.tenant", "common")
	v.SetDefault("matching_materials.scopes", []string{})
	v.SetDefault("matching_materials.token", "")
}

// Load reads and validates the configuration.
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, names := range credentialEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("matexport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.matexport")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config read error: %w", err)
		}
		// Not found is ok, use defaults/env
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal error: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Redacted returns a copy with secrets masked, for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Duspot.Token = mask(c.Duspot.Token)
	c.Duspot.Password = mask(c.Duspot.Password)
	c.MatchingMaterials.ClientSecret = mask(c.MatchingMaterials.ClientSecret)
	c.MatchingMaterials.Token = mask(c.MatchingMaterials.Token)
	return c
}
