package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leshachaplin/testgenie/internal/telemetry"
)

func (c *CLI) newMCPCmd() *cobra.Command {
	var (
		profile      string
		force        bool
		listProfiles bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Setup MCP (Model Context Protocol) configuration for VS Code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c.trackCommand(ctx, "mcp")

			if listProfiles {
				return c.listProfiles()
			}

			c.printer.Title("⚙️  Setting up MCP Configuration...")
			rep, err := c.Installer.SetupMCP(profile, force, c.chooseProfile())
			if err != nil {
				return fmt.Errorf("MCP setup failed: %w", err)
			}
			c.printMCP(rep)
			c.printer.Success("MCP Configuration completed successfully!")
			c.printer.List(yellow, "\n📝 Next Steps:",
				"Restart VS Code to load the new MCP configuration",
				"Update your Atlassian credentials in the MCP config file",
				"Open GitHub Copilot Chat and test the Atlassian integration",
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", `VS Code profile name (e.g. "1a6e6ee" or "default")`)
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing MCP configuration")
	cmd.Flags().BoolVar(&listProfiles, "list-profiles", false, "List available VS Code profiles")
	return cmd
}

func (c *CLI) listProfiles() error {
	vscode := c.Installer.VSCode()
	c.printer.Title("📂 Available VS Code Profiles:")
	c.printer.Printf("%s %s\n   %s\n", green("📁 Default"), gray("- Standard VS Code user directory"), gray("Path: "+vscode.UserDir))

	profiles, err := vscode.Profiles()
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	if len(profiles) == 0 {
		c.printer.Println(gray("   No custom profiles found."))
		return nil
	}
	for _, p := range profiles {
		c.printer.Printf("%s %s\n   %s\n", green("📁 "+p), gray("- Custom profile"), gray("Path: "+vscode.ProfileDir(p)))
	}
	return nil
}

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available chatmodes and features",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			c.trackCommand(cmd.Context(), "list")

			c.printer.Title("📋 TestGenie CLI Features:")
			c.printer.List(green, "🚀 Full Installation Includes:",
				"GitHub Chatmodes for VS Code",
				"Testing dependencies (Playwright, Mocha, etc.)",
				"MCP configuration for Atlassian integration",
				"VS Code settings optimization",
			)
			c.printer.List(green, "🧞 TestGenie - Test Case Generation Mode",
				"Generate structured test cases from Jira tickets",
				"Create automation scripts with Mocha framework",
			)
			c.printer.List(green, "🪰 BugGenie - Bug Ticket Generation Mode",
				"Create detailed bug reports",
				"Integrate with Jira for ticket creation",
			)
			c.printer.List(green, "🤖 ScriptGenerator - Automation Script Generation",
				"Generate Playwright test scripts",
				"Real-time browser automation",
			)
			c.printer.List(cyan, "📦 Dependencies Installed:",
				"@playwright/test - Browser automation",
				"mocha & chai - Testing framework",
				"allure-playwright - Test reporting",
				"typescript - Type safety",
				"axios & dotenv - HTTP & environment",
			)
		},
	}
}

func (c *CLI) newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [project-path]",
		Short: "Update existing chatmodes to latest version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.trackCommand(cmd.Context(), "update")

			root, err := os.Getwd()
			if len(args) == 1 {
				root, err = args[0], nil
			}
			if err != nil {
				return err
			}

			res, err := c.Installer.Update(root)
			if err != nil {
				return err
			}
			if len(res.Written) == 0 {
				c.printer.Success("Chatmodes are up to date!")
				return nil
			}
			for _, path := range res.Written {
				c.printer.Printf("  %s %s\n", green("↻"), relTo(root, path))
			}
			c.printer.Success(fmt.Sprintf("Updated %d file(s)", len(res.Written)))
			return nil
		},
	}
}

func (c *CLI) newAuthCmd() *cobra.Command {
	var (
		test  bool
		token string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Setup GitHub API authentication for analytics tracking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c.trackCommand(ctx, "auth")

			if token != "" {
				c.Telemetry.Token = token
				_ = os.Setenv("GITHUB_TOKEN", token)
				c.printer.Warn("Token set for this session only")
			}
			if test {
				return c.testAuth(ctx)
			}
			c.printAuthHelp()
			return nil
		},
	}

	cmd.Flags().BoolVar(&test, "test", false, "Test existing authentication")
	cmd.Flags().StringVar(&token, "token", "", "Set GitHub token directly (not recommended for production)")
	return cmd
}

func (c *CLI) testAuth(ctx context.Context) error {
	c.printer.Title("🔐 Testing GitHub API Authentication...")
	if c.Telemetry.Token == "" {
		c.printer.Println(red("❌ No GitHub token found!"))
		c.printAuthSteps()
		return nil
	}
	c.printer.Printf("%s\n🔑 Token: %s\n", green("✅ GitHub token found!"), telemetry.MaskToken(c.Telemetry.Token))

	status, err := telemetry.CheckAuth(ctx, *c.Telemetry, c.HTTPClient)
	if status.Login != "" {
		c.printer.Printf("👤 Authenticated as: %s\n", status.Login)
		email := status.Email
		if email == "" {
			email = "private"
		}
		c.printer.Printf("📧 Email: %s\n", email)
	}
	if err != nil {
		return fmt.Errorf("authentication test failed: %w", err)
	}
	c.printer.Success("Repository access confirmed: " + c.Telemetry.Repo)
	return nil
}

func (c *CLI) printAuthHelp() {
	c.printer.Title("🔐 TestGenie GitHub API Authentication Setup")
	if c.Telemetry.Token != "" {
		c.printer.Println(green("✅ GitHub token already configured!"))
		c.printer.Printf("   Token: %s\n\n   Run: testgenie auth --test\n", telemetry.MaskToken(c.Telemetry.Token))
		return
	}
	c.printer.Println(red("❌ No GitHub token found"))
	c.printAuthSteps()
}

func (c *CLI) printAuthSteps() {
	c.printer.Println(cyan("\n🔑 Setup Steps:"))
	c.printer.Println("1. Create Personal Access Token: https://github.com/settings/tokens (repo, workflow)")
	c.printer.Println("2. Set environment variable:")
	if runtime.GOOS == "windows" {
		c.printer.Println(`   setx GITHUB_TOKEN "ghp_your_token"`)
	} else {
		c.printer.Println(`   export GITHUB_TOKEN="ghp_your_token"`)
	}
	c.printer.Println("3. Restart terminal and test: testgenie auth --test")
}

func (c *CLI) newAnalyticsCmd() *cobra.Command {
	var urlOnly bool

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Open TestGenie Analytics Dashboard",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			c.trackCommand(ctx, "analytics")

			if urlOnly {
				c.printer.Println(blue("📊 Analytics Dashboard: " + DashboardURL))
				return
			}
			c.printer.Title("📊 TestGenie Analytics Dashboard")
			c.printer.Println(cyan("🔗 URL: " + DashboardURL))
			if err := c.OpenURL(ctx, DashboardURL); err != nil {
				c.logger.Debug().Err(err).Msg("open browser")
				c.printer.Warn("Could not auto-open browser. Please visit the URL above manually.")
				return
			}
			c.printer.Success("Dashboard opened successfully!")
		},
	}
	cmd.Flags().BoolVar(&urlOnly, "url", false, "Show analytics dashboard URL")
	return cmd
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}

var errConsentArg = errors.New(`expected "on", "off" or "status"`)

func (c *CLI) newConsentCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "consent [on|off|status]",
		Short:     "Show or change the analytics consent",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.Consent == nil {
				return errors.New("consent store unavailable")
			}
			action := "status"
			if len(args) == 1 {
				action = args[0]
			}

			switch action {
			case "on", "off":
				granted := action == "on"
				if err := c.Consent.Save(granted); err != nil {
					return err
				}
				if c.resolver != nil {
					c.resolver.Set(granted)
				}
				c.printer.Success("Analytics consent: " + action)
				c.trackCommand(cmd.Context(), "consent")
				return nil
			case "status":
				v, err := c.Consent.Load()
				if err != nil {
					return err
				}
				state := "not set"
				if v != nil && *v {
					state = "on"
				} else if v != nil {
					state = "off"
				}
				if !c.Telemetry.Enabled {
					state += " (disabled by TESTGENIE_TELEMETRY)"
				}
				c.printer.Printf("Analytics consent: %s\nConfig: %s\n", state, c.Consent.Path())
				return nil
			default:
				return fmt.Errorf("%w, got %q", errConsentArg, action)
			}
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			c.trackCommand(cmd.Context(), "version")
			c.printer.Printf("testgenie version %s\n", c.Version)
		},
	}
}
