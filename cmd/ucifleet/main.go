// ucifleet - UCI fleet reconciliation tool
//
// Reconciles a declarative desired-state document against a single UCI
// device, or a fleet of them, over SSH or a serial console.
//
// Single-device surface (spec §6.4):
//
//	ucifleet preview    <config.yaml...>  --host <target> [connection flags]
//	ucifleet apply      <config.yaml...>  --host <target> [connection/apply flags]
//	ucifleet validate   <config.yaml...>
//	ucifleet commands   <config.yaml...>
//	ucifleet import     --host <target> <package...>
//
// Fleet surface:
//
//	ucifleet fleet preview  --fleet fleet.yaml [--target <glob>] [--tags t1,t2]
//	ucifleet fleet apply    --fleet fleet.yaml [--target <glob>] [--tags t1,t2] [--workers N]
//	ucifleet fleet validate --fleet fleet.yaml
//	ucifleet fleet show     --fleet fleet.yaml
//
// Exit codes: 0 on success, 1 on any failure (transport, validation,
// diff-apply error, or user abort).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ucifleet/ucifleet/pkg/audit"
	"github.com/ucifleet/ucifleet/pkg/cli"
	"github.com/ucifleet/ucifleet/pkg/settings"
	"github.com/ucifleet/ucifleet/pkg/util"
	"github.com/ucifleet/ucifleet/pkg/version"
)

// connectionFlags holds the common single-device connection flags (spec §6.1/§6.4).
type connectionFlags struct {
	host     string
	user     string
	password string
	keyFile  string
	timeout  int
	serial   string
}

// applyFlags holds the common apply flags shared by single-device and
// fleet apply/preview commands (spec §6.4).
type applyFlags struct {
	dryRun          bool
	showCommands    bool
	noCommit        bool
	noReload        bool
	removeUnmanaged bool
	yes             bool
	noColor         bool
}

// fleetFlags holds the fleet-wide selection and concurrency flags.
type fleetFlags struct {
	fleetFile string
	target    string
	tags      []string
	workers   int
}

// App holds CLI state shared across all commands.
type App struct {
	conn  connectionFlags
	apply applyFlags
	fleet fleetFlags

	verbose bool

	settings *settings.Settings
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "ucifleet",
	Short:             "Reconcile declarative UCI configuration against devices and fleets",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `ucifleet reconciles a declarative desired-state document against a
device's live UCI configuration (network/wireless/dhcp/firewall/sqm),
over SSH or a serial console, and applies the minimal set of changes.

Single-device:
  ucifleet preview  base.yaml --host root@ap1
  ucifleet apply    base.yaml site.yaml --host root@ap1 --yes
  ucifleet validate base.yaml
  ucifleet commands base.yaml

Fleet-wide (staged, then simultaneously committed):
  ucifleet fleet preview --fleet inventory.yaml --target 'ap-*'
  ucifleet fleet apply   --fleet inventory.yaml --tags floor2 --workers 8`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isMetaCommand(cmd) {
			return nil
		}

		if app.verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		var err error
		app.settings, err = settings.Load()
		if err != nil {
			util.Logger.Warnf("could not load settings: %v", err)
			app.settings = &settings.Settings{}
		}

		if app.fleet.fleetFile == "" {
			app.fleet.fleetFile = app.settings.DefaultFleetFile
		}
		if app.fleet.workers <= 0 {
			app.fleet.workers = app.settings.GetWorkers()
		}

		auditPath := app.settings.GetAuditLogPath(app.settings.GetSpecDir())
		auditLogger, err := audit.NewFileLogger(auditPath, audit.RotationConfig{
			MaxSize:    int64(app.settings.GetAuditMaxSizeMB()) * 1024 * 1024,
			MaxBackups: app.settings.GetAuditMaxBackups(),
		})
		if err != nil {
			util.Logger.Warnf("could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose logging")

	addConnectionFlags(previewCmd)
	addConnectionFlags(applyCmd)
	addConnectionFlags(importCmd)

	addApplyFlags(applyCmd)
	addApplyFlags(previewCmd)

	addFleetSelectionFlags(fleetApplyCmd)
	addFleetSelectionFlags(fleetPreviewCmd)
	addFleetSelectionFlags(fleetValidateCmd)
	addFleetSelectionFlags(fleetShowCmd)
	addApplyFlags(fleetApplyCmd)
	addApplyFlags(fleetPreviewCmd)

	rootCmd.AddGroup(
		&cobra.Group{ID: "device", Title: "Single-Device Commands:"},
		&cobra.Group{ID: "fleet", Title: "Fleet Commands:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{previewCmd, applyCmd, validateCmd, commandsCmd, importCmd} {
		cmd.GroupID = "device"
		rootCmd.AddCommand(cmd)
	}

	fleetCmd.AddCommand(fleetApplyCmd, fleetPreviewCmd, fleetValidateCmd, fleetShowCmd)
	fleetCmd.GroupID = "fleet"
	rootCmd.AddCommand(fleetCmd)

	for _, cmd := range []*cobra.Command{settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())
	},
}

// isMetaCommand reports whether cmd (or an ancestor) is a command that
// should skip settings/audit initialization.
func isMetaCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

func addConnectionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&app.conn.host, "host", "", "Device target: host[:port], user@host[:port], or a serial path via --serial")
	f.StringVar(&app.conn.user, "user", "", "SSH username (default: root)")
	f.StringVar(&app.conn.password, "password", "", "SSH/serial login password")
	f.StringVar(&app.conn.keyFile, "key-file", "", "SSH private key file")
	f.IntVar(&app.conn.timeout, "timeout", 30, "Connection timeout in seconds")
	f.StringVar(&app.conn.serial, "serial", "", "Serial device path (e.g. /dev/ttyUSB0), overrides --host")
}

func addApplyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&app.apply.dryRun, "dry-run", false, "Compute and display the plan without mutating the device")
	f.BoolVar(&app.apply.showCommands, "show-commands", false, "Print the diff before applying (fleet preview: each device's planned uci commands)")
	f.BoolVar(&app.apply.noCommit, "no-commit", false, "Stage changes without committing")
	f.BoolVar(&app.apply.noReload, "no-reload", false, "Skip service reloads after commit")
	f.BoolVar(&app.apply.removeUnmanaged, "remove-unmanaged", false, "Remove remote-only state not covered by a whitelist")
	f.BoolVarP(&app.apply.yes, "yes", "y", false, "Do not prompt for confirmation")
	f.BoolVar(&app.apply.noColor, "no-color", false, "Disable colored output")
}

func addFleetSelectionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&app.fleet.fleetFile, "fleet", "", "Fleet inventory document")
	f.StringVar(&app.fleet.target, "target", "", "Device-name glob selecting which devices to operate on")
	f.StringSliceVar(&app.fleet.tags, "tags", nil, "Require these tags (AND) when selecting devices")
	f.IntVar(&app.fleet.workers, "workers", 0, "Bounded worker pool size (default: settings default, else 5)")
}

// color helpers — delegate to pkg/cli, honoring --no-color.
func green(s string) string {
	if app.apply.noColor {
		return s
	}
	return cli.Green(s)
}
func yellow(s string) string {
	if app.apply.noColor {
		return s
	}
	return cli.Yellow(s)
}
func red(s string) string {
	if app.apply.noColor {
		return s
	}
	return cli.Red(s)
}
func bold(s string) string {
	if app.apply.noColor {
		return s
	}
	return cli.Bold(s)
}
