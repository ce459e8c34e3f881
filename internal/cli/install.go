package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leshachaplin/testgenie/internal/domain"
	"github.com/leshachaplin/testgenie/internal/installer"
	"github.com/leshachaplin/testgenie/internal/templates"
)

type installFlags struct {
	typ     string
	force   bool
	noDeps  bool
	noMCP   bool
	profile string
	yes     bool
}

func (c *CLI) newInstallCmd() *cobra.Command {
	var f installFlags

	cmd := &cobra.Command{
		Use:   "install [project-path]",
		Short: "Install GitHub Chatmodes to a VS Code project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return c.runInstall(cmd.Context(), root, f)
		},
	}

	cmd.Flags().StringVarP(&f.typ, "type", "t", "", "Specific chatmode type to install (test, bug, script)")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "Force overwrite existing chatmodes")
	cmd.Flags().BoolVar(&f.noDeps, "no-deps", false, "Skip dependency installation")
	cmd.Flags().BoolVar(&f.noMCP, "no-mcp", false, "Skip MCP configuration setup")
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", `VS Code profile for MCP configuration (e.g. "1a6e6ee" or "default")`)
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Accept defaults without prompting")
	return cmd
}

func (f installFlags) data(root string) map[string]any {
	return map[string]any{
		"projectPath": root,
		"command":     "install",
		"type":        f.typ,
		"force":       f.force,
		"deps":        !f.noDeps,
		"mcp":         !f.noMCP,
		"profile":     f.profile,
	}
}

func (c *CLI) runInstall(ctx context.Context, root string, f installFlags) error {
	start := time.Now()
	if root == "" {
		root, _ = os.Getwd()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	c.Tracker.Track(ctx, domain.ActionInstallStart, f.data(root))
	c.printer.Title("🚀 TestGenie CLI")

	opts, err := c.installOptions(root, f)
	if err == nil {
		var rep installer.Report
		rep, err = c.Installer.Install(ctx, root, opts, c.chooseProfile())
		c.printReport(rep)
	}
	if err != nil {
		data := f.data(root)
		data["error"] = err.Error()
		c.Tracker.Track(ctx, domain.ActionInstallError, data)
		return err
	}

	data := f.data(root)
	data["duration"] = time.Since(start).Milliseconds()
	data["success"] = true
	c.Tracker.Track(ctx, domain.ActionInstallSuccess, data)

	c.printer.Success("TestGenie installation completed successfully!")
	c.printNextSteps()
	return nil
}

// installOptions turns flags into installer options, asking the user when
// nothing was specified on an interactive terminal. An explicit --type
// installs just that chat mode.
func (c *CLI) installOptions(root string, f installFlags) (installer.Options, error) {
	if f.typ != "" {
		if _, err := templates.Lookup(f.typ); err != nil {
			return installer.Options{}, err
		}
		return installer.Options{Types: []string{f.typ}, Force: f.force, Profile: f.profile}, nil
	}

	opts := installer.Options{
		Types:   templates.Types(),
		Force:   f.force,
		Deps:    !f.noDeps,
		MCP:     !f.noMCP,
		Profile: f.profile,
	}
	if f.yes || !c.Interactive {
		return opts, nil
	}

	opts.Types = opts.Types[:0]
	for _, cm := range templates.Chatmodes() {
		if yes, _ := c.prompter.Confirm("Install "+cm.Name+" ("+cm.Summary+")?", true); yes {
			opts.Types = append(opts.Types, cm.Type)
		}
	}
	if opts.Deps {
		opts.Deps, _ = c.prompter.Confirm("Install testing dependencies (Playwright, Mocha, etc.)?", true)
	}
	if opts.MCP {
		opts.MCP, _ = c.prompter.Confirm("Setup MCP configuration for Atlassian integration?", true)
	}
	if installed, _ := installer.NewLayout(root).InstalledChatmodes(); len(installed) > 0 && !f.force {
		opts.Force, _ = c.prompter.Confirm("Overwrite existing files if they exist?", false)
	}
	return opts, nil
}

func (c *CLI) chooseProfile() installer.ChooseFunc {
	if !c.Interactive {
		return nil
	}
	return func(profiles []string) (string, bool) {
		return c.prompter.Choose("Which VS Code profile should we install MCP configuration for?", profiles, installer.ProfileLabel)
	}
}

func (c *CLI) printReport(rep installer.Report) {
	for _, w := range rep.Warnings {
		c.printer.Warn(w)
	}
	for _, path := range rep.Chatmodes.Written {
		c.printer.Printf("  %s %s\n", green("+"), relTo(rep.Root, path))
	}
	for _, path := range rep.Chatmodes.Skipped {
		c.printer.Printf("  %s %s %s\n", gray("="), relTo(rep.Root, path), gray("(exists, use --force to overwrite)"))
	}
	if rep.DepsInstalled {
		c.printer.Printf("  %s dependencies installed\n", green("+"))
	}
	if rep.MCP != nil {
		c.printMCP(*rep.MCP)
	}
}

func (c *CLI) printMCP(rep installer.MCPReport) {
	if rep.Profile.Note != "" {
		c.printer.Warn(rep.Profile.Note)
	}
	c.printer.Printf("%s\n", blue("📁 Using VS Code profile: "+installer.ProfileLabel(rep.Profile.ID)))
	c.printer.Printf("\n%s\n", yellow("⚠️  MCP Configuration Notice:"))
	c.printer.Printf("MCP config installed at: %s\n", rep.Path)
	c.printer.Println("Please update the following environment variables in the MCP config:")
	c.printer.Println(cyan("• ATLASSIAN_API_TOKEN - Your Atlassian API token"))
	c.printer.Println(cyan("• ATLASSIAN_USER_EMAIL - Your Atlassian email address"))
}

func (c *CLI) printNextSteps() {
	c.printer.List(yellow, "\n📋 Next Steps:",
		"Open VS Code in your project directory",
		"Restart VS Code to load MCP configuration",
		"Open GitHub Copilot Chat",
		"Type @ to see available chatmodes",
		"Select your desired chatmode and start using it!",
	)

	var modes []string
	for _, cm := range templates.Chatmodes() {
		modes = append(modes, "@"+cm.Name+" - "+cm.Summary)
	}
	c.printer.List(cyan, "Available Chatmodes:", modes...)

	c.printer.List(magenta, "Available npm scripts:",
		"npm test - Run Playwright tests",
		"npm run test:headed - Run tests with visible browser",
		"npm run test:debug - Debug tests",
		"npm run report - View test report",
	)
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
