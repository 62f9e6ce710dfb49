// config loads the application settings from a yaml file of the form:
//
//	kind: fieldviz
//	def:
//	  server:
//	    port: 8080
//	  ...
//
// Anything missing from def keeps its default.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"fieldviz/fields"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// The expected value of the envelope's kind.
const KIND = "fieldviz"

var (
	ErrWrongKind     = errors.New("config kind is not " + KIND)
	ErrInvalidConfig = errors.New("invalid config")
)

// OuterConfig is the envelope every config file is wrapped in.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Keys are snake_case because viper lowercases everything it reads.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Generator GeneratorConfig `yaml:"generator"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublishRate is the minimum interval between two pushes to a websocket client.
	PublishRate     time.Duration `yaml:"publish_rate"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GeneratorConfig struct {
	// Seed zero means seed from the clock at startup.
	Seed      uint64 `yaml:"seed"`
	FieldType string `yaml:"field_type"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			PublishRate:     100 * time.Millisecond,
			ShutdownTimeout: 5 * time.Second,
		},
		Generator: GeneratorConfig{
			Seed:      0,
			FieldType: fields.Scalar.String(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// FromYaml reads the config at path over the defaults and validates it.
// Read errors wrap the underlying error, so a missing file can be detected with
// errors.Is(err, fs.ErrNotExist).
func FromYaml(path string) (*AppConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if outerConfig.Kind != KIND {
		return nil, fmt.Errorf("%w: %q", ErrWrongKind, outerConfig.Kind)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(spec, cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (cfg *AppConfig) Validate() error {
	var problems []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Server.PublishRate <= 0 {
		problems = append(problems, "server.publish_rate must be positive")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "server.shutdown_timeout must be positive")
	}
	if _, err := fields.ParseFieldType(cfg.Generator.FieldType); err != nil {
		problems = append(problems, "generator.field_type: "+err.Error())
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		problems = append(problems, "log.level: "+err.Error())
	}
	if f := strings.ToLower(cfg.Log.Format); f != "text" && f != "json" {
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", cfg.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Addr is the server's listen address.
func (cfg *AppConfig) Addr() string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

// FieldType is the generator's starting field type. Call Validate first; an
// unparseable value falls back to scalar.
func (cfg *AppConfig) FieldType() fields.FieldType {
	ft, _ := fields.ParseFieldType(cfg.Generator.FieldType)
	return ft
}

// Seed returns the configured seed, or one derived from now when it is zero.
func (cfg *AppConfig) Seed(now time.Time) uint64 {
	if cfg.Generator.Seed != 0 {
		return cfg.Generator.Seed
	}
	return uint64(now.UnixNano())
}
