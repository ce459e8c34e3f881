// Package cli implements the testgenie command line.
package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/leshachaplin/testgenie/app"
	"github.com/leshachaplin/testgenie/internal/consent"
	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/installer"
	"github.com/leshachaplin/testgenie/internal/telemetry"
)

const DashboardURL = "https://sjuberrafik-clgx.github.io/testgenie"

// Tracker fires analytics events. Implementations must never fail the caller.
type Tracker interface {
	Track(ctx context.Context, action string, data map[string]any)
}

// CLI carries the collaborators of every command. Fields left nil are
// filled with the production defaults before the first command runs.
type CLI struct {
	Version     string
	In          io.Reader
	Out         io.Writer
	Err         io.Writer
	Interactive bool
	Executable  string

	Telemetry  *telemetry.Config
	Tracker    Tracker
	Consent    *consent.Store
	Installer  *installer.Installer
	HTTPClient *http.Client
	OpenURL    func(ctx context.Context, url string) error
	// Transports replaces the default delivery chain of the tracker.
	Transports []telemetry.Transport

	resolver *consent.Resolver
	logger   zerolog.Logger
	printer  *Printer
	prompter *Prompter
	args     []string
}

func New(version string) *CLI {
	exe, _ := os.Executable()
	return &CLI{
		Version:     version,
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
		Executable:  exe,
	}
}

// Execute runs the command line given by args (without the program name).
func (c *CLI) Execute(ctx context.Context, args []string) error {
	c.args = args
	root := c.Command()
	root.SetArgs(args)
	root.SetIn(c.In)
	root.SetOut(c.Out)
	root.SetErr(c.Err)

	err := root.ExecuteContext(ctx)
	if err != nil {
		NewPrinter(c.Err).Error(err)
	}
	return err
}

func (c *CLI) Command() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "testgenie",
		Short: "TestGenie CLI - Install GitHub Chatmodes, dependencies, and MCP configuration for VS Code",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.setup(cmd.Context(), debug)
			c.trackEphemeral(cmd.Context())
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		c.newInstallCmd(),
		c.newMCPCmd(),
		c.newListCmd(),
		c.newUpdateCmd(),
		c.newAuthCmd(),
		c.newAnalyticsCmd(),
		c.newConsentCmd(),
		c.newVersionCmd(),
	)
	return cmd
}

func (c *CLI) setup(ctx context.Context, debug bool) {
	level := app.INFO
	if debug {
		level = app.DEBUG
	}
	c.logger = app.NewConsoleLogger(c.Err, level)
	c.printer = NewPrinter(c.Out)
	c.prompter = NewPrompter(c.In, c.Out)

	if c.Telemetry == nil {
		cfg := telemetry.LoadConfig(c.Version)
		c.Telemetry = &cfg
	}
	if c.Consent == nil {
		if path, err := consent.DefaultPath(); err == nil {
			c.Consent = consent.NewStore(path)
		} else {
			c.logger.Debug().Err(err).Msg("consent store unavailable")
		}
	}
	if c.Tracker == nil {
		c.Tracker = c.newEmitter(ctx)
	}
	if c.Installer == nil {
		vscode, err := installer.DefaultVSCode()
		if err != nil {
			c.logger.Debug().Err(err).Msg("vscode user dir unavailable")
		}
		c.Installer = installer.New(c.Version, vscode, installer.ExecRunner{}, c.logger)
	}
	if c.OpenURL == nil {
		c.OpenURL = openBrowser
	}
}

func (c *CLI) newEmitter(ctx context.Context) Tracker {
	var checker telemetry.ConsentChecker = telemetry.ConsentFunc(func() bool { return false })
	if c.Consent != nil {
		var ask consent.AskFunc
		if c.Interactive {
			ask = func(q string, def bool) (bool, bool) {
				c.printer.Printf("\n%s\n", bold("📊 Help improve TestGenie!"))
				return c.prompter.Confirm(q, def)
			}
		}
		c.resolver = consent.NewResolver(c.Consent, c.Interactive, ask, c.logger)
		checker = c.resolver
	}

	transports := c.Transports
	if len(transports) == 0 {
		transports = telemetry.DefaultTransports(*c.Telemetry, c.HTTPClient, c.logger)
	}
	return telemetry.NewWithTransports(c.Telemetry.Enabled, telemetry.NewBuilder(ctx, c.Version), checker, c.logger, transports...)
}

// trackEphemeral reports runs from a throwaway location (temp dir, go run cache).
func (c *CLI) trackEphemeral(ctx context.Context) {
	if !telemetry.IsEphemeral(c.Executable) {
		return
	}
	command := strings.Join(c.args, " ")
	if command == "" {
		command = "help"
	}
	c.Tracker.Track(ctx, domain.ActionNpxUsage, map[string]any{
		"command": command,
		"args":    c.args,
	})
}

func (c *CLI) trackCommand(ctx context.Context, name string) {
	c.Tracker.Track(ctx, domain.ActionCommand, map[string]any{"command": name})
}
