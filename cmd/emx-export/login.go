package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	flag "github.com/spf13/pflag"

	"github.com/emx-mail/export/pkgs/config"
)

func (a *app) handleLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	addConfigFlags(fs)
	forget := fs.Bool("forget", false, "Remove the stored password instead")
	if err := fs.Parse(args); err != nil {
		fatal("login: %v", err)
	}

	cfg, err := config.Load(a.configPath, fs)
	if err != nil {
		return err
	}
	username := cfg.IMAP.Username
	if username == "" {
		return fmt.Errorf("--user is required")
	}
	creds := config.NewCredentials()

	if *forget {
		if err := creds.Delete(username); err != nil {
			return err
		}
		fmt.Printf("Password for %s removed\n", username)
		return nil
	}

	password := cfg.IMAP.Password
	if password == "" {
		err := huh.NewInput().
			Title("Password for " + username).
			EchoMode(huh.EchoModePassword).
			Value(&password).
			Validate(func(s string) error {
				if s == "" {
					return fmt.Errorf("password is required")
				}
				return nil
			}).
			Run()
		if err != nil {
			return err
		}
	}

	if err := creds.Set(username, password); err != nil {
		return err
	}
	fmt.Printf("Password for %s stored in keyring (service %s)\n", username, config.KeyringService)
	return nil
}
