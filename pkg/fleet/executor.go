package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ucifleet/ucifleet/pkg/docs"
	"github.com/ucifleet/ucifleet/pkg/reconcile"
	"github.com/ucifleet/ucifleet/pkg/ucierr"
	"github.com/ucifleet/ucifleet/pkg/uci"
)

// ExecutorOptions configures a fleet run.
type ExecutorOptions struct {
	// Workers bounds how many devices are processed concurrently. Defaults
	// to settings.DefaultWorkers (5) when zero.
	Workers int
	// CommitDelay is how long the device waits, after staging succeeds on
	// every device, before committing and reloading. Defaults to the
	// inventory's Defaults.CommitDelay when zero.
	CommitDelay time.Duration
	// Removal controls which remote-only state is proposed for deletion.
	Removal uci.RemovalDirective
	// Policies maps package name to its whitelist policy.
	Policies map[string]*uci.Policy
	Progress ProgressCallbacks
}

func (o ExecutorOptions) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return 5
}

// Executor runs preview/stage/commit/apply across a filtered set of fleet
// devices. Grounded on wrtkit.fleet_executor.FleetExecutor, translating its
// ThreadPoolExecutor/as_completed control flow to goroutines bounded by a
// semaphore channel and synchronized with a sync.WaitGroup, per the
// teacher's pkg/newtlab worker-pool idiom.
type Executor struct {
	inventory *Inventory
	opts      ExecutorOptions
	dial      func(ConnectionParams) Transport

	mu       sync.Mutex
	sessions map[string]stagedSession
}

type stagedSession struct {
	transport Transport
	diff      *uci.Diff
	plan      []uci.Command
}

// Transport is the narrow session contract the executor depends on; it is
// satisfied by transport.Transport.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsOpen() bool
	Execute(ctx context.Context, command string) (stdout, stderr string, exitCode int, err error)
	GetUCIConfig(ctx context.Context, pkg string) (string, error)
}

// NewExecutor builds an Executor over an already-loaded fleet inventory.
func NewExecutor(inv *Inventory, opts ExecutorOptions) *Executor {
	return &Executor{
		inventory: inv,
		opts:      opts,
		dial:      func(p ConnectionParams) Transport { return newTransport(p) },
		sessions:  make(map[string]stagedSession),
	}
}

// WithDialer overrides how the executor opens a device session, primarily
// so tests can substitute a fake Transport in place of a real SSH/serial
// dial.
func (e *Executor) WithDialer(dial func(ConnectionParams) Transport) *Executor {
	e.dial = dial
	return e
}

// deviceJob is one (name, Device) pair plus its resolved desired-state
// document paths, handed to a worker goroutine.
type deviceJob struct {
	name   string
	device Device
}

// runParallel executes work for each selected device using a bounded pool
// of goroutines, gated by a semaphore channel sized to opts.workers().
// Grounded on pkg/newtlab.newtlab.go's worker-pool idiom.
func (e *Executor) runParallel(phase string, devices map[string]Device, work func(deviceJob) DeviceResult) *FleetResult {
	result := newFleetResult()
	e.opts.Progress.phaseStart(phase, len(devices))

	var jobs []deviceJob
	for name, d := range devices {
		jobs = append(jobs, deviceJob{name: name, device: d})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].name < jobs[j].name })

	sem := make(chan struct{}, e.opts.workers())
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(job deviceJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			e.opts.Progress.deviceStart(phase, job.name)
			start := time.Now()
			res := work(job)
			res.Duration = time.Since(start)

			mu.Lock()
			result.Devices[job.name] = res
			mu.Unlock()

			e.opts.Progress.deviceComplete(phase, res)
		}(job)
	}
	wg.Wait()

	return result
}

// buildDiff loads a device's desired-state documents, fetches its current
// remote configuration for every package the desired state touches, and
// computes a uci.Diff.
func (e *Executor) buildDiff(ctx context.Context, t Transport, d Device) (*uci.Diff, error) {
	paths := e.inventory.ResolvedConfigPaths(d)
	desiredTree, err := docs.Load(paths)
	if err != nil {
		return nil, ucierr.Wrap(ucierr.KindDocumentError, "loading desired-state documents", err)
	}

	localCmds := desiredTree.EmitCommands()

	var remoteCmds []uci.Command
	for _, pkgName := range desiredTree.PackageNames() {
		text, err := t.GetUCIConfig(ctx, pkgName)
		if err != nil {
			return nil, ucierr.Wrap(ucierr.KindRemoteCommandFailed, fmt.Sprintf("fetching remote config for package %q", pkgName), err)
		}
		cmds, err := uci.ParseAuto(pkgName, text)
		if err != nil {
			return nil, ucierr.Wrap(ucierr.KindParseError, fmt.Sprintf("parsing remote config for package %q", pkgName), err)
		}
		remoteCmds = append(remoteCmds, cmds...)
	}

	policies := make(map[string]*uci.Policy, len(e.opts.Policies))
	for pkg, p := range e.opts.Policies {
		policies[pkg] = p
	}
	for _, pkg := range desiredTree.Packages() {
		if pkg.Policy != nil {
			policies[pkg.Name] = pkg.Policy
		}
	}

	diff := uci.Compute(localCmds, remoteCmds, uci.DiffOptions{
		Removal:  e.opts.Removal,
		Policies: policies,
	})
	return diff, nil
}

// Preview computes, for each selected device, the plan of commands staging
// would apply, without connecting a write session beyond the read needed to
// fetch remote state. It never mutates device state.
func (e *Executor) Preview(ctx context.Context, devices map[string]Device) *FleetResult {
	return e.runParallel("preview", devices, func(job deviceJob) DeviceResult {
		t := e.dial(e.inventory.ConnectionParamsFor(job.device))
		if err := t.Connect(ctx); err != nil {
			return DeviceResult{Device: job.name, Success: false, Err: ucierr.Wrap(ucierr.KindTransportUnavailable, "connecting", err).WithDevice(job.name)}
		}
		defer t.Disconnect()

		diff, err := e.buildDiff(ctx, t, job.device)
		if err != nil {
			return DeviceResult{Device: job.name, Success: false, Err: err}
		}
		plan := reconcile.Plan(diff)
		return DeviceResult{Device: job.name, Success: true, Commands: plan}
	})
}

// Stage connects to each selected device, computes its plan, and applies it
// without committing. Any device failure triggers a fail-fast abort: the
// remaining in-flight devices finish their current command, but no new
// device is started, and every device that staged successfully before the
// failure is rolled back via `uci revert`. Grounded on
// wrtkit.fleet_executor.FleetExecutor.stage / ._rollback_all.
func (e *Executor) Stage(ctx context.Context, devices map[string]Device) *FleetResult {
	stageCtx, abort := context.WithCancel(ctx)
	defer abort()

	var failed atomic.Bool
	result := e.runParallel("stage", devices, func(job deviceJob) DeviceResult {
		if stageCtx.Err() != nil {
			return DeviceResult{Device: job.name, Success: false, Err: ucierr.New(ucierr.KindFleetStageFailure, "stage aborted before this device started").WithDevice(job.name)}
		}
		t := e.dial(e.inventory.ConnectionParamsFor(job.device))
		if err := t.Connect(stageCtx); err != nil {
			failed.Store(true)
			abort()
			return DeviceResult{Device: job.name, Success: false, Err: ucierr.Wrap(ucierr.KindTransportUnavailable, "connecting", err).WithDevice(job.name)}
		}

		diff, err := e.buildDiff(stageCtx, t, job.device)
		if err != nil {
			t.Disconnect()
			failed.Store(true)
			abort()
			return DeviceResult{Device: job.name, Success: false, Err: err}
		}

		plan := reconcile.Plan(diff)
		res := reconcile.Apply(stageCtx, t, diff, reconcile.Options{})
		if res.Err != nil {
			t.Disconnect()
			failed.Store(true)
			abort()
			return DeviceResult{
				Device:  job.name,
				Success: false,
				Err:     ucierr.Wrap(ucierr.KindFleetStageFailure, "staging commands", res.Err).WithDevice(job.name),
			}
		}

		e.mu.Lock()
		e.sessions[job.name] = stagedSession{transport: t, diff: diff, plan: plan}
		e.mu.Unlock()

		return DeviceResult{Device: job.name, Success: true, Commands: plan}
	})

	if failed.Load() {
		e.rollbackAll(ctx, result)
	}
	return result
}

// rollbackAll issues `uci revert` against every device that staged
// successfully, since a fleet-wide stage is all-or-nothing: a partial
// staging is never left in place. Grounded on
// wrtkit.fleet_executor.FleetExecutor._rollback_all.
func (e *Executor) rollbackAll(ctx context.Context, result *FleetResult) {
	e.mu.Lock()
	sessions := e.sessions
	e.sessions = make(map[string]stagedSession)
	e.mu.Unlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, sess := range sessions {
		wg.Add(1)
		go func(name string, sess stagedSession) {
			defer wg.Done()
			defer sess.transport.Disconnect()

			mutated := reconcile.MutatedPackages(sess.plan)
			revertOK := true
			for pkg := range mutated {
				_, _, exitCode, err := sess.transport.Execute(ctx, fmt.Sprintf("uci revert %s", pkg))
				if err != nil || exitCode != 0 {
					revertOK = false
				}
			}

			mu.Lock()
			defer mu.Unlock()
			r := result.Devices[name]
			r.RolledBack = revertOK
			r.Success = false
			result.Devices[name] = r
		}(name, sess)
	}
	wg.Wait()
}

// Cleanup disconnects any sessions left open from a Stage call that was not
// followed by Commit (e.g. the caller decided not to proceed). Safe to call
// even when nothing is staged.
func (e *Executor) Cleanup() {
	e.mu.Lock()
	sessions := e.sessions
	e.sessions = make(map[string]stagedSession)
	e.mu.Unlock()

	for _, sess := range sessions {
		sess.transport.Disconnect()
	}
}

// Commit finalizes every staged device: each issues a detached, delayed
// `uci commit` followed by the package-aware service reloads its staged
// plan requires, then the executor disconnects. The delay leaves a window
// in which every staged device receives its commit instruction before any
// of them commits and reloads services (a network restart may sever the
// session that issued it).
// Grounded on wrtkit.fleet_executor.FleetExecutor.commit, translating its
// `nohup sh -c 'sleep N && uci commit && ...' &` pattern but selecting
// reloads per mutated package instead of reloading every service.
func (e *Executor) Commit(ctx context.Context, devices map[string]Device) *FleetResult {
	delay := e.opts.CommitDelay
	if delay <= 0 {
		delay = time.Duration(e.inventory.Defaults.CommitDelay) * time.Second
	}
	delaySeconds := int(delay / time.Second)
	if delaySeconds <= 0 {
		delaySeconds = 1
	}

	return e.runParallel("commit", devices, func(job deviceJob) DeviceResult {
		e.mu.Lock()
		sess, ok := e.sessions[job.name]
		if ok {
			delete(e.sessions, job.name)
		}
		e.mu.Unlock()

		if !ok {
			return DeviceResult{
				Device:  job.name,
				Success: false,
				Err:     ucierr.New(ucierr.KindFleetCommitFailure, "commit called with no staged session").WithDevice(job.name),
			}
		}
		defer sess.transport.Disconnect()

		mutated := reconcile.MutatedPackages(sess.plan)
		reloads := reconcile.ReloadCommandsFor(mutated)

		commitCmd := "uci commit"
		for _, r := range reloads {
			commitCmd += " && " + r
		}
		detached := fmt.Sprintf("nohup sh -c 'sleep %d && %s' >/dev/null 2>&1 &", delaySeconds, commitCmd)

		_, stderr, exitCode, err := sess.transport.Execute(ctx, detached)
		if err != nil || exitCode != 0 {
			if err == nil {
				err = fmt.Errorf("exit %d: %s", exitCode, stderr)
			}
			return DeviceResult{
				Device:  job.name,
				Success: false,
				Err:     ucierr.Wrap(ucierr.KindFleetCommitFailure, "issuing detached commit", err).WithDevice(job.name),
			}
		}

		return DeviceResult{Device: job.name, Success: true, Commands: sess.plan}
	})
}

// Apply runs the full preview-free staging and commit sequence in one call:
// Stage, and only if every device staged, Commit. On a staging failure the
// fleet is rolled back and Commit is never attempted.
func (e *Executor) Apply(ctx context.Context, devices map[string]Device) (*FleetResult, *FleetResult) {
	stageResult := e.Stage(ctx, devices)
	if !stageResult.AllSuccessful() {
		return stageResult, nil
	}
	commitResult := e.Commit(ctx, devices)
	return stageResult, commitResult
}
