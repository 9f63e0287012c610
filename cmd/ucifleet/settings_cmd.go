package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ucifleet/ucifleet/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.ucifleet/settings.json.

Settings provide defaults for flags that aren't specified:
  default_fleet_file - Used when --fleet is not specified
  spec_dir           - Desired-state document directory
  audit_log_path     - Audit log location
  default_workers    - Fleet stage-phase worker pool size
  default_commit_delay - Stored and shown only; fleet commands take the
                         commit delay from the inventory's defaults

Examples:
  ucifleet settings show
  ucifleet settings set default_fleet_file ./inventory.yaml
  ucifleet settings set default_workers 8
  ucifleet settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SETTING\tVALUE")
		fmt.Fprintln(w, "-------\t-----")

		printSetting := func(name, value string) {
			if value == "" {
				value = "(not set)"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, value)
		}

		printSetting("default_fleet_file", s.DefaultFleetFile)
		printSetting("spec_dir", s.SpecDir)
		printSetting("audit_log_path", s.AuditLogPath)
		printSetting("audit_max_size_mb", dashInt(s.AuditMaxSizeMB))
		printSetting("audit_max_backups", dashInt(s.AuditMaxBackups))
		printSetting("default_workers", dashInt(s.DefaultWorkers))
		printSetting("default_commit_delay", dashInt(s.DefaultCommitDelay))

		w.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		switch key {
		case "default_fleet_file", "fleet":
			s.DefaultFleetFile = value
		case "spec_dir", "specs":
			s.SpecDir = value
		case "audit_log_path":
			s.AuditLogPath = value
		case "audit_max_size_mb":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("audit_max_size_mb must be an integer: %w", err)
			}
			s.AuditMaxSizeMB = n
		case "audit_max_backups":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("audit_max_backups must be an integer: %w", err)
			}
			s.AuditMaxBackups = n
		case "default_workers":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("default_workers must be an integer: %w", err)
			}
			s.DefaultWorkers = n
		case "default_commit_delay":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("default_commit_delay must be an integer: %w", err)
			}
			s.DefaultCommitDelay = n
		default:
			return fmt.Errorf("unknown setting: %s", key)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", key, value)
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settings.DefaultSettingsPath())
	},
}

func dashInt(v int) string {
	if v <= 0 {
		return "-"
	}
	return strconv.Itoa(v)
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsClearCmd, settingsPathCmd)
}
