package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ucifleet/ucifleet/pkg/audit"
	"github.com/ucifleet/ucifleet/pkg/cli"
	"github.com/ucifleet/ucifleet/pkg/fleet"
	"github.com/ucifleet/ucifleet/pkg/uci"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Operate on many devices at once via a fleet inventory document",
}

// loadSelectedDevices loads the fleet inventory named by --fleet and
// applies --target/--tags selection.
func loadSelectedDevices() (*fleet.Inventory, map[string]fleet.Device, error) {
	if app.fleet.fleetFile == "" {
		return nil, nil, fmt.Errorf("--fleet <inventory.yaml> is required")
	}
	inv, err := fleet.LoadInventory(app.fleet.fleetFile)
	if err != nil {
		return nil, nil, err
	}
	devices := inv.FilterDevices(app.fleet.target, app.fleet.tags)
	if len(devices) == 0 {
		return nil, nil, fmt.Errorf("no devices matched --target=%q --tags=%v", app.fleet.target, app.fleet.tags)
	}
	return inv, devices, nil
}

func newExecutor(inv *fleet.Inventory) *fleet.Executor {
	return fleet.NewExecutor(inv, fleet.ExecutorOptions{
		Workers:     app.fleet.workers,
		CommitDelay: time.Duration(inv.Defaults.CommitDelay) * time.Second,
		Removal:     removalDirective(),
		Progress:    progressCallbacks(),
	})
}

func progressCallbacks() fleet.ProgressCallbacks {
	return fleet.ProgressCallbacks{
		OnDeviceComplete: func(phase string, res fleet.DeviceResult) {
			status := green("ok")
			if !res.Success {
				status = red("FAILED")
			}
			fmt.Printf("  [%s] %-20s %s (%d commands, %s)\n", phase, res.Device, status, len(res.Commands), res.Duration.Round(time.Millisecond))
			if res.Err != nil {
				fmt.Printf("           %s\n", res.Err)
			}
		},
	}
}

func sortedNames(devices map[string]fleet.Device) []string {
	names := make([]string, 0, len(devices))
	for n := range devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var fleetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List devices selected by --target/--tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, devices, err := loadSelectedDevices()
		if err != nil {
			return err
		}
		for _, name := range sortedNames(devices) {
			d := devices[name]
			params := inv.ConnectionParamsFor(d)
			fmt.Printf("%s\n", bold(cli.DotPad(name, 28)))
			fmt.Printf("    target:  %s\n", params.Target)
			fmt.Printf("    user:    %s\n", params.Username)
			fmt.Printf("    timeout: %s\n", params.Timeout)
			fmt.Printf("    configs: %v\n", inv.ResolvedConfigPaths(d))
			if len(d.Tags) > 0 {
				fmt.Printf("    tags:    %v\n", d.Tags)
			}
		}
		return nil
	},
}

var fleetValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and merge every selected device's desired-state documents, without contacting a device",
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, devices, err := loadSelectedDevices()
		if err != nil {
			return err
		}
		var failed []string
		for _, name := range sortedNames(devices) {
			d := devices[name]
			if _, err := buildDesiredTree(inv.ResolvedConfigPaths(d)); err != nil {
				fmt.Printf("%-20s %s: %v\n", name, red("FAILED"), err)
				failed = append(failed, name)
				continue
			}
			fmt.Printf("%-20s %s\n", name, green("OK"))
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d device(s) failed validation: %v", len(failed), failed)
		}
		return nil
	},
}

var fleetPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the plan each selected device would apply, without mutating anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, devices, err := loadSelectedDevices()
		if err != nil {
			return err
		}
		exec := newExecutor(inv)
		result := exec.Preview(context.Background(), devices)

		for _, name := range sortedNames(devices) {
			res := result.Devices[name]
			if !res.Success {
				fmt.Printf("%s: %s: %v\n", name, red("FAILED"), res.Err)
				continue
			}
			fmt.Printf("%s: %d command(s)\n", name, len(res.Commands))
			if app.apply.showCommands {
				for _, c := range res.Commands {
					fmt.Printf("  %s\n", c.String())
				}
			}
		}
		if !result.AllSuccessful() {
			return fmt.Errorf("preview failed for: %v", result.Failed())
		}
		return nil
	},
}

var fleetApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Stage changes across every selected device, then commit them together",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		inv, devices, err := loadSelectedDevices()
		if err != nil {
			return err
		}
		exec := newExecutor(inv)
		ctx := context.Background()

		if app.apply.dryRun {
			result := exec.Preview(ctx, devices)
			total := 0
			for _, name := range sortedNames(devices) {
				res := result.Devices[name]
				total += len(res.Commands)
				fmt.Printf("%s: %d command(s)\n", name, len(res.Commands))
			}
			fmt.Println(yellow(fmt.Sprintf("DRY-RUN: %d device(s), %d total command(s); no changes made.", len(devices), total)))
			if !result.AllSuccessful() {
				return fmt.Errorf("planning failed for: %v", result.Failed())
			}
			return nil
		}

		if !app.apply.yes && !confirm(fmt.Sprintf("Stage and commit changes across %d device(s)?", len(devices)), os.Stdin) {
			return fmt.Errorf("aborted by user")
		}

		var stageResult, commitResult *fleet.FleetResult
		if app.apply.noCommit {
			stageResult = exec.Stage(ctx, devices)
		} else {
			stageResult, commitResult = exec.Apply(ctx, devices)
		}

		logFleetAudit(devices, stageResult, commitResult, time.Since(start))

		if !stageResult.AllSuccessful() {
			return fmt.Errorf("fleet stage failed and was rolled back on: %v", stageResult.Failed())
		}
		fmt.Println(green(fmt.Sprintf("Staged %d device(s).", stageResult.SuccessCount())))

		if app.apply.noCommit {
			fmt.Println(yellow("--no-commit: changes are staged but not committed. Run the commit separately or use `uci revert` to back out."))
			return nil
		}

		if commitResult == nil || !commitResult.AllSuccessful() {
			failed := []string{}
			if commitResult != nil {
				failed = commitResult.Failed()
			}
			return fmt.Errorf("fleet commit dispatch failed on: %v (other devices' commits are not rolled back)", failed)
		}
		fmt.Println(green(fmt.Sprintf("Commit dispatched on %d device(s).", commitResult.SuccessCount())))
		return nil
	},
}

func logFleetAudit(devices map[string]fleet.Device, stage, commit *fleet.FleetResult, dur time.Duration) {
	for name := range devices {
		var cmds []uci.Command
		success := false
		var opErr error
		if stage != nil {
			if r, ok := stage.Devices[name]; ok {
				cmds = r.Commands
				success = r.Success
				opErr = r.Err
			}
		}
		if commit != nil {
			if r, ok := commit.Devices[name]; ok {
				success = success && r.Success
				if r.Err != nil {
					opErr = r.Err
				}
			}
		}
		event := audit.NewEvent(app.conn.user, name, "fleet_apply").WithCommands(cmds).WithDuration(dur)
		if success {
			audit.Log(event.WithSuccess())
		} else {
			audit.Log(event.WithError(opErr))
		}
	}
}
