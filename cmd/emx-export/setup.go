package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	appctl "github.com/emx-mail/export/pkgs/app"
	"github.com/emx-mail/export/pkgs/config"
	"github.com/emx-mail/export/pkgs/email"
	"github.com/emx-mail/export/pkgs/export"
	"github.com/emx-mail/export/pkgs/logging"
)

// addConfigFlags registers the flags config.Load binds. Defaults live in
// the config package; flag defaults here only document them.
func addConfigFlags(fs *flag.FlagSet) {
	fs.String("host", "", "IMAP server")
	fs.Int("port", 993, "IMAP port")
	fs.String("user", "", "Username")
	fs.String("password", "", "Password (default: keyring)")
	fs.Bool("ssl", true, "Implicit TLS")
	fs.Bool("starttls", false, "Upgrade a plaintext connection with STARTTLS")
	fs.Bool("insecure", false, "Skip certificate verification")
	fs.String("auth", "login", "Auth method: login or plain")
	fs.String("mailbox", email.DefaultMailbox, "Mailbox to search")
	fs.Duration("timeout", email.ConnectTimeout, "Connect timeout")
	fs.String("mode", config.ModeStructured, "Export mode: structured, template or mbox")
	fs.String("output", ".", "Output directory")
	fs.String("template", "", "Template file for template mode")
	fs.String("log-level", "info", "Log level")
	fs.String("log-format", "text", "Log format: text or json")
	fs.String("log-output", "stderr", "Log destination")
	fs.String("diagnostics", "", "Failure log file, - to disable")
}

// loadConfig loads and validates the configuration, reads the template
// and resolves the password from the keyring when none is given.
func (a *app) loadConfig(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(a.configPath, fs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%w", err)
	}
	if err := cfg.LoadTemplate(); err != nil {
		return nil, err
	}
	if err := cfg.ResolvePassword(config.NewCredentials().Get); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runtime bundles what a connected command needs.
type runtime struct {
	cfg         *config.Config
	logger      *slog.Logger
	diagnostics *logging.Diagnostics
	controller  *appctl.Controller
}

func newRuntime(cfg *config.Config) *runtime {
	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	diag, err := logging.OpenDiagnostics(cfg.DiagnosticsPath())
	if err != nil {
		logger.Warn("diagnostics log disabled", "path", cfg.DiagnosticsPath(), "error", err)
	}
	logger = logging.Tee(logger, diag.Handler())

	session := email.NewSession(logger)
	return &runtime{
		cfg:         cfg,
		logger:      logger,
		diagnostics: diag,
		controller:  appctl.New(session, logger),
	}
}

func (r *runtime) close() {
	if r.controller.Connected() {
		r.controller.Disconnect()
	}
	r.diagnostics.Close()
}

// formatter returns the export formatter for the configured mode.
func (r *runtime) formatter() export.Formatter {
	switch r.cfg.Export.Mode {
	case config.ModeTemplate:
		return export.Template{Text: r.cfg.Export.Template}
	case config.ModeMbox:
		return &export.Mbox{}
	}
	return export.Structured{}
}

func (r *runtime) downloadOptions() appctl.DownloadOptions {
	return appctl.DownloadOptions{
		OutputDir:   r.cfg.Export.OutputDir,
		Formatter:   r.formatter(),
		IncludeHost: r.cfg.Export.Mode == config.ModeTemplate,
		Progress: func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rDownloading... (%d/%d)", done, total)
		},
	}
}
