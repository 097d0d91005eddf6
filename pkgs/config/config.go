package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/emx-mail/export/pkgs/email"
)

const (
	// EnvPrefix prefixes every environment override, e.g. EMX_EXPORT_IMAP_HOST.
	EnvPrefix = "EMX_EXPORT"
	// EnvConfigPath points to a config file when --config is not given.
	EnvConfigPath = "EMX_EXPORT_CONFIG"
)

// Export modes.
const (
	ModeStructured = "structured"
	ModeTemplate   = "template"
	ModeMbox       = "mbox"
)

// DiagnosticsFile is the default diagnostics log name inside the output
// directory.
const DiagnosticsFile = "output_log.txt"

// ProtocolSettings holds the IMAP connection settings.
type ProtocolSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// SSL enables implicit TLS (connect directly over TLS).
	SSL bool `mapstructure:"ssl"`
	// StartTLS enables opportunistic TLS upgrade after connecting in
	// plaintext. It takes precedence over SSL.
	StartTLS bool `mapstructure:"starttls"`
	// Insecure skips certificate verification.
	Insecure bool `mapstructure:"insecure"`

	Auth    string        `mapstructure:"auth"`
	Mailbox string        `mapstructure:"mailbox"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExportSettings controls where and how messages are written.
type ExportSettings struct {
	Mode         string `mapstructure:"mode"`
	OutputDir    string `mapstructure:"output_dir"`
	TemplateFile string `mapstructure:"template_file"`

	// Template holds the template file contents after LoadTemplate.
	Template string `mapstructure:"-"`
}

// LoggingConfig configures the console logger and the diagnostics log.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	// Diagnostics is the append-only failure log. Empty means
	// DiagnosticsFile in the output directory; "-" disables it.
	Diagnostics string `mapstructure:"diagnostics"`
}

// Config holds the application configuration
type Config struct {
	IMAP    ProtocolSettings `mapstructure:"imap"`
	Export  ExportSettings   `mapstructure:"export"`
	Logging LoggingConfig    `mapstructure:"logging"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"host":        "imap.host",
	"port":        "imap.port",
	"user":        "imap.username",
	"password":    "imap.password",
	"ssl":         "imap.ssl",
	"starttls":    "imap.starttls",
	"insecure":    "imap.insecure",
	"auth":        "imap.auth",
	"mailbox":     "imap.mailbox",
	"timeout":     "imap.timeout",
	"mode":        "export.mode",
	"output":      "export.output_dir",
	"template":    "export.template_file",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"log-output":  "logging.output",
	"diagnostics": "logging.diagnostics",
}

// Load reads configuration from defaults, an optional file, the
// environment and flags, in increasing order of precedence. An empty
// configPath falls back to EnvConfigPath; flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		configPath = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides are seen by
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.ssl", true)
	v.SetDefault("imap.starttls", false)
	v.SetDefault("imap.insecure", false)
	v.SetDefault("imap.auth", string(email.AuthLogin))
	v.SetDefault("imap.mailbox", email.DefaultMailbox)
	v.SetDefault("imap.timeout", email.ConnectTimeout)

	v.SetDefault("export.mode", ModeStructured)
	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.template_file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.diagnostics", "")
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.IMAP.Host == "" {
		errs = append(errs, errors.New("imap.host is required"))
	}
	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		errs = append(errs, fmt.Errorf("imap.port out of range: %d", c.IMAP.Port))
	}
	if c.IMAP.Username == "" {
		errs = append(errs, errors.New("imap.username is required"))
	}
	switch email.AuthMethod(c.IMAP.Auth) {
	case email.AuthLogin, email.AuthPlain:
	default:
		errs = append(errs, fmt.Errorf("imap.auth must be login or plain, got %q", c.IMAP.Auth))
	}
	if c.IMAP.Timeout < 0 {
		errs = append(errs, fmt.Errorf("imap.timeout must not be negative: %s", c.IMAP.Timeout))
	}
	errs = append(errs, c.validateExport()...)
	return errors.Join(errs...)
}

func (c *Config) validateExport() []error {
	var errs []error
	switch c.Export.Mode {
	case ModeStructured, ModeMbox:
	case ModeTemplate:
		if c.Export.TemplateFile == "" {
			errs = append(errs, errors.New("export.template_file is required in template mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("export.mode must be structured, template or mbox, got %q", c.Export.Mode))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	return errs
}

// LoadTemplate reads the template file once. It is a no-op outside
// template mode.
func (c *Config) LoadTemplate() error {
	if c.Export.Mode != ModeTemplate {
		return nil
	}
	data, err := os.ReadFile(c.Export.TemplateFile)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	c.Export.Template = string(data)
	return nil
}

// ResolvePassword fills an empty password from lookup, keyed by username.
func (c *Config) ResolvePassword(lookup func(username string) (string, error)) error {
	if c.IMAP.Password != "" {
		return nil
	}
	password, err := lookup(c.IMAP.Username)
	if err != nil {
		return fmt.Errorf("no password configured for %s: %w", c.IMAP.Username, err)
	}
	c.IMAP.Password = password
	return nil
}

// DiagnosticsPath returns the diagnostics log path, or "" when disabled.
func (c *Config) DiagnosticsPath() string {
	switch c.Logging.Diagnostics {
	case "-":
		return ""
	case "":
		return filepath.Join(c.Export.OutputDir, DiagnosticsFile)
	}
	return c.Logging.Diagnostics
}

// SessionConfig converts the IMAP settings for email.Session.
func (c *Config) SessionConfig() email.IMAPConfig {
	s := c.IMAP
	cfg := email.IMAPConfig{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		SSL:      s.SSL && !s.StartTLS,
		StartTLS: s.StartTLS,
		Auth:     email.AuthMethod(s.Auth),
		Mailbox:  s.Mailbox,
		Timeout:  s.Timeout,
	}
	if s.Insecure {
		cfg.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return cfg
}
