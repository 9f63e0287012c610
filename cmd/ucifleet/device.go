package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ucifleet/ucifleet/pkg/audit"
	"github.com/ucifleet/ucifleet/pkg/docs"
	"github.com/ucifleet/ucifleet/pkg/reconcile"
	"github.com/ucifleet/ucifleet/pkg/render"
	"github.com/ucifleet/ucifleet/pkg/transport"
	"github.com/ucifleet/ucifleet/pkg/uci"
	"github.com/ucifleet/ucifleet/pkg/ucierr"
	"github.com/ucifleet/ucifleet/pkg/util"
)

// buildTransport constructs an unconnected Transport from the connection
// flags, dispatching to serial or SSH per spec §6.1.
func buildTransport() (transport.Transport, string, error) {
	timeout := time.Duration(app.conn.timeout) * time.Second

	if app.conn.serial != "" {
		s, err := transport.NewSerial(app.conn.serial, 0, timeout, "", app.conn.user, app.conn.password)
		if err != nil {
			return nil, "", fmt.Errorf("configuring serial transport: %w", err)
		}
		return s, app.conn.serial, nil
	}

	if app.conn.host == "" {
		return nil, "", fmt.Errorf("either --host or --serial is required")
	}
	parsed := transport.ParseTarget(app.conn.host)
	username := parsed.Username
	if app.conn.user != "" {
		username = app.conn.user
	}
	return transport.NewSSH(parsed.Host, parsed.Port, username, app.conn.password, app.conn.keyFile, timeout), app.conn.host, nil
}

// buildDesiredTree loads and merges the desired-state documents named on
// the command line into a uci.Tree (the C8 layered-loader entry point).
func buildDesiredTree(paths []string) (*uci.Tree, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one desired-state document is required")
	}
	return docs.Load(paths)
}

// computeDiff fetches remote state for every package the desired tree
// touches and classifies it against the desired tree (C5).
func computeDiff(ctx context.Context, t transport.Transport, tree *uci.Tree, removal uci.RemovalDirective) (*uci.Diff, error) {
	localCmds := tree.EmitCommands()

	var remoteCmds []uci.Command
	policies := make(map[string]*uci.Policy)
	for _, pkg := range tree.Packages() {
		if pkg.Policy != nil {
			policies[pkg.Name] = pkg.Policy
		}
	}
	for _, pkgName := range tree.PackageNames() {
		text, err := t.GetUCIConfig(ctx, pkgName)
		if err != nil {
			return nil, ucierr.Wrap(ucierr.KindRemoteCommandFailed, fmt.Sprintf("fetching remote config for package %q", pkgName), err)
		}
		cmds, err := uci.ParseAuto(pkgName, text)
		if err != nil {
			util.Logger.Warnf("skipping package %q: %v", pkgName, err)
			continue
		}
		remoteCmds = append(remoteCmds, cmds...)
	}

	return uci.Compute(localCmds, remoteCmds, uci.DiffOptions{Removal: removal, Policies: policies}), nil
}

func removalDirective() uci.RemovalDirective {
	if app.apply.removeUnmanaged {
		return uci.RemoveAllDirective()
	}
	return uci.KeepAll()
}

var previewCmd = &cobra.Command{
	Use:   "preview <config...>",
	Short: "Show the diff between desired state and the device's live configuration",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := buildDesiredTree(args)
		if err != nil {
			return err
		}
		t, name, err := buildTransport()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := t.Connect(ctx); err != nil {
			return ucierr.Wrap(ucierr.KindTransportUnavailable, "connecting", err).WithDevice(name)
		}
		defer t.Disconnect()

		diff, err := computeDiff(ctx, t, tree, removalDirective())
		if err != nil {
			return err
		}

		fmt.Print(render.Tree(diff, !app.apply.noColor))
		return nil
	},
}

var commandsCmd = &cobra.Command{
	Use:   "commands <config...>",
	Short: "Print the uci commands a desired-state document would emit, without contacting a device",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := buildDesiredTree(args)
		if err != nil {
			return err
		}
		for _, c := range tree.EmitCommands() {
			fmt.Println(c.String())
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <config...>",
	Short: "Parse and merge desired-state documents, reporting errors without contacting a device",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := buildDesiredTree(args)
		if err != nil {
			return err
		}
		n := 0
		for _, pkg := range tree.Packages() {
			n += len(pkg.Sections())
		}
		fmt.Println(green(fmt.Sprintf("OK: %d package(s), %d section(s)", len(tree.PackageNames()), n)))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <package...>",
	Short: "Fetch a device's live `uci export` text for the named packages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, name, err := buildTransport()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := t.Connect(ctx); err != nil {
			return ucierr.Wrap(ucierr.KindTransportUnavailable, "connecting", err).WithDevice(name)
		}
		defer t.Disconnect()

		for _, pkg := range args {
			text, err := t.GetUCIConfig(ctx, pkg)
			if err != nil {
				return ucierr.Wrap(ucierr.KindRemoteCommandFailed, fmt.Sprintf("fetching package %q", pkg), err).WithDevice(name)
			}
			fmt.Print(text)
			if !strings.HasSuffix(text, "\n") {
				fmt.Println()
			}
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <config...>",
	Short: "Reconcile desired state against a single device",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		tree, err := buildDesiredTree(args)
		if err != nil {
			return err
		}
		t, name, err := buildTransport()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := t.Connect(ctx); err != nil {
			return ucierr.Wrap(ucierr.KindTransportUnavailable, "connecting", err).WithDevice(name)
		}
		defer t.Disconnect()

		diff, err := computeDiff(ctx, t, tree, removalDirective())
		if err != nil {
			return err
		}

		plan := reconcile.Plan(diff)
		if app.apply.showCommands || app.apply.dryRun {
			fmt.Print(render.Flat(diff, !app.apply.noColor))
		}
		if len(plan) == 0 {
			fmt.Println(green("Already up to date; nothing to apply."))
			return nil
		}

		if app.apply.dryRun {
			fmt.Println(yellow(fmt.Sprintf("DRY-RUN: %d command(s) would be applied; no changes made.", len(plan))))
			return nil
		}

		if !app.apply.yes && !confirm(fmt.Sprintf("Apply %d command(s) to %s?", len(plan), name), os.Stdin) {
			return fmt.Errorf("aborted by user")
		}

		res := reconcile.Apply(ctx, t, diff, reconcile.Options{
			AutoCommit: !app.apply.noCommit,
			AutoReload: !app.apply.noCommit && !app.apply.noReload,
		})

		event := audit.NewEvent(app.conn.user, name, "apply").
			WithCommands(res.AppliedCommands).
			WithDuration(time.Since(start))
		if res.Err != nil {
			audit.Log(event.WithError(res.Err))
			return ucierr.Wrap(ucierr.KindRemoteCommandFailed, "applying plan", res.Err).WithDevice(name)
		}
		audit.Log(event.WithSuccess())

		fmt.Println(green(fmt.Sprintf("Applied %d command(s).", len(res.AppliedCommands))))
		if res.CommitIssued {
			fmt.Println(green("Committed."))
		}
		for _, r := range res.ReloadsIssued {
			fmt.Println(green("Reloaded: " + r))
		}
		return nil
	},
}

// confirm prompts the user for a yes/no answer, reading from r.
func confirm(prompt string, r io.Reader) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(r)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
