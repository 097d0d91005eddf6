package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

const version = "1.0.0"

// app holds global options parsed from the command line
type app struct {
	configPath string
}

func main() {
	a := &app{}

	// Global flags stop at the command name; command flags are parsed
	// by each command.
	flag.CommandLine.SetInterspersed(false)
	flag.StringVar(&a.configPath, "config", "", "Config file (default: $EMX_EXPORT_CONFIG)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("emx-export v%s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "predicates":
		handlePredicates(os.Stdout)
	case "search":
		if err := a.handleSearch(cmdArgs); err != nil {
			fatal("search: %v", err)
		}
	case "download":
		if err := a.handleDownload(cmdArgs); err != nil {
			fatal("download: %v", err)
		}
	case "interactive":
		if err := a.handleInteractive(cmdArgs); err != nil {
			fatal("interactive: %v", err)
		}
	case "login":
		if err := a.handleLogin(cmdArgs); err != nil {
			fatal("login: %v", err)
		}
	case "version":
		fmt.Printf("emx-export v%s\n", version)
	case "help":
		printUsage()
		os.Exit(0)
	default:
		fatal("unknown command '%s'", cmd)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `emx-export v%s - Search an IMAP mailbox and export matching messages

Usage:
  emx-export [--config <file>] <command> [command options]

Commands:
  predicates   List the search predicates and their parameters
  search       Run a search and print the number of matches
  download     Run a search and export every match
  interactive  Pick a predicate and its arguments from forms
  login        Store the IMAP password in the system keyring
  version      Show version information

Global Options:
  --config <file>        Config file (YAML, JSON or TOML)
  --version              Show version information

Connection Options (all commands but predicates):
  --host <host>          IMAP server
  --port <port>          IMAP port (default: 993)
  --user <name>          Username
  --password <pass>      Password (default: keyring, see login)
  --ssl                  Implicit TLS (default: true)
  --starttls             Upgrade a plaintext connection with STARTTLS
  --insecure             Skip certificate verification
  --auth <method>        login or plain (default: login)
  --mailbox <name>       Mailbox to search (default: INBOX)
  --timeout <dur>        Connect timeout (default: 6s)

Search Options:
  --predicate <name>     Predicate name, see 'predicates'
  --arg <value>          Predicate argument, repeat in parameter order
                         (dates as 2006-01-02, empty for unset)
  --not                  Negate the predicate

Export Options (download, interactive):
  --mode <mode>          structured, template or mbox (default: structured)
  --output <dir>         Output directory (default: .)
  --template <file>      Template file for template mode; {0} sender,
                         {1} first recipient, {2} date, {3} subject, {4} body

Logging Options:
  --log-level <level>    debug, info, warn or error (default: info)
  --log-format <fmt>     text or json (default: text)
  --log-output <dest>    stderr, stdout or a file (default: stderr)
  --diagnostics <file>   Failure log (default: <output>/output_log.txt, - to disable)

Config Resolution:
  defaults < config file < EMX_EXPORT_* environment < flags
  e.g. EMX_EXPORT_IMAP_HOST, EMX_EXPORT_EXPORT_MODE

Examples:
  emx-export predicates
  emx-export search --host imap.example.com --user me@example.com --predicate Unseen
  emx-export download --predicate Since --arg 2026-01-01 --mode structured
  emx-export download --predicate Subject --arg invoice --mode template --template t.html
  emx-export login --user me@example.com
`, version)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
