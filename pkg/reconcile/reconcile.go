// Package reconcile consumes a uci.Diff and drives a transport through the
// ordered apply sequence: deletions, additions, modifications, commit, and
// package-aware service reloads.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/ucifleet/ucifleet/pkg/uci"
	"github.com/ucifleet/ucifleet/pkg/util"
)

// State names the reconciliation state machine's states (spec §4.7).
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateDiffing    State = "diffing"
	StateApplying   State = "applying"
	StateCommitting State = "committing"
	StateReloading  State = "reloading"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Executor is the narrow transport contract the reconciler depends on; it
// is satisfied by transport.Transport.
type Executor interface {
	Execute(ctx context.Context, command string) (stdout, stderr string, exitCode int, err error)
}

// reloadRules maps a mutated package to the service-reload command it
// requires, per spec §4.7 point 6 (grounded verbatim in
// wrtkit.ssh.SSHConnection.reload_config).
var reloadRules = []struct {
	packages []string
	command  string
}{
	{[]string{"network", "sqm"}, "/etc/init.d/network restart"},
	{[]string{"wireless"}, "wifi reload"},
	{[]string{"dhcp"}, "/etc/init.d/dnsmasq restart"},
	{[]string{"firewall"}, "/etc/init.d/firewall reload"},
}

// Options configures a single reconciliation run.
type Options struct {
	DryRun         bool
	AutoCommit     bool
	AutoReload     bool
	ReloadSettle   time.Duration // inter-reload settle delay; default 1s
	DryRunWriter   func(line string)
}

// Result reports what a reconciliation run did.
type Result struct {
	State           State
	AppliedCommands []uci.Command
	CommitIssued    bool
	ReloadsIssued   []string
	Err             error
	FailedCommand   *uci.Command
	Stderr          string
}

// Plan builds the ordered command list for a Diff per spec §4.7 steps 1-3:
// deletion-optimized removals, then additions, then modification values.
func Plan(d *uci.Diff) []uci.Command {
	var plan []uci.Command
	plan = append(plan, planDeletions(d)...)
	plan = append(plan, d.ToAdd...)
	for _, m := range d.ToModify {
		plan = append(plan, m.Local)
	}
	return plan
}

// planDeletions implements the deletion optimization: a section that is
// entirely remote-only collapses to a single `delete package.section` and
// skips every per-option delete for that section.
func planDeletions(d *uci.Diff) []uci.Command {
	type key struct{ pkg, section string }
	grouped := make(map[key][]uci.Command)
	var order []key

	for _, c := range d.ToRemove {
		segs := c.Segments()
		k := key{pkg: segs[0], section: segs[1]}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], c)
	}

	var out []uci.Command
	for _, k := range order {
		sectionKey := k.pkg + "." + k.section
		wholeSectionRemote := d.RemoteSections[sectionKey] && !d.LocalSections[sectionKey]
		if wholeSectionRemote {
			out = append(out, uci.NewDelete(sectionKey))
			continue
		}
		for _, c := range grouped[k] {
			switch c.Action {
			case uci.ActionAddList:
				out = append(out, uci.NewDelList(c.Path, c.Value))
			default:
				out = append(out, uci.NewDelete(c.Path))
			}
		}
	}
	return out
}

// MutatedPackages returns the set of packages named by any command in cmds.
func MutatedPackages(cmds []uci.Command) map[string]bool {
	set := make(map[string]bool)
	for _, c := range cmds {
		set[c.Package()] = true
	}
	return set
}

// ReloadCommandsFor returns the ordered, de-duplicated service-reload
// commands required for the given set of mutated packages.
func ReloadCommandsFor(mutated map[string]bool) []string {
	var cmds []string
	for _, rule := range reloadRules {
		for _, pkg := range rule.packages {
			if mutated[pkg] {
				cmds = append(cmds, rule.command)
				break
			}
		}
	}
	return cmds
}

// Apply runs a full reconciliation: execute the plan against exec in order,
// then optionally commit and reload. Dry-run mode writes the plan via
// opts.DryRunWriter (or util.Logger if unset) without touching exec.
func Apply(ctx context.Context, exec Executor, d *uci.Diff, opts Options) Result {
	plan := Plan(d)
	res := Result{State: StateApplying}

	if opts.DryRun {
		write := opts.DryRunWriter
		if write == nil {
			write = func(line string) { util.Logger.Info(line) }
		}
		for _, c := range plan {
			write(c.String())
		}
		res.AppliedCommands = plan
		res.State = StateDone
		return res
	}

	for _, c := range plan {
		stdout, stderr, exitCode, err := exec.Execute(ctx, c.String())
		_ = stdout
		if err != nil || exitCode != 0 {
			res.State = StateFailed
			failed := c
			res.FailedCommand = &failed
			res.Stderr = stderr
			if err == nil {
				err = fmt.Errorf("uci: command %q exited %d: %s", c.String(), exitCode, stderr)
			}
			res.Err = err
			return res
		}
		res.AppliedCommands = append(res.AppliedCommands, c)
	}

	if opts.AutoCommit {
		res.State = StateCommitting
		_, stderr, exitCode, err := exec.Execute(ctx, "uci commit")
		if err != nil || exitCode != 0 {
			res.State = StateFailed
			res.Stderr = stderr
			if err == nil {
				err = fmt.Errorf("uci commit exited %d: %s", exitCode, stderr)
			}
			res.Err = err
			return res
		}
		res.CommitIssued = true
	}

	if opts.AutoReload {
		res.State = StateReloading
		settle := opts.ReloadSettle
		if settle <= 0 {
			settle = time.Second
		}
		mutated := MutatedPackages(res.AppliedCommands)
		for _, cmd := range ReloadCommandsFor(mutated) {
			_, stderr, exitCode, err := exec.Execute(ctx, cmd)
			if err != nil || exitCode != 0 {
				res.State = StateFailed
				res.Stderr = stderr
				if err == nil {
					err = fmt.Errorf("reload command %q exited %d: %s", cmd, exitCode, stderr)
				}
				res.Err = err
				return res
			}
			res.ReloadsIssued = append(res.ReloadsIssued, cmd)
			select {
			case <-ctx.Done():
				res.State = StateFailed
				res.Err = ctx.Err()
				return res
			case <-time.After(settle):
			}
		}
	}

	res.State = StateDone
	return res
}
