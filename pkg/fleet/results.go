package fleet

import (
	"time"

	"github.com/ucifleet/ucifleet/pkg/uci"
)

// DeviceResult reports the outcome of one phase (preview/stage/commit) for
// a single device. Grounded on wrtkit.fleet_executor.DeviceResult.
type DeviceResult struct {
	Device     string
	Success    bool
	Commands   []uci.Command
	Err        error
	Duration   time.Duration
	RolledBack bool
}

// FleetResult aggregates per-device results for one executor phase.
// Grounded on wrtkit.fleet_executor.FleetResult.
type FleetResult struct {
	Devices map[string]DeviceResult
}

func newFleetResult() *FleetResult {
	return &FleetResult{Devices: make(map[string]DeviceResult)}
}

// SuccessCount returns how many devices succeeded.
func (r *FleetResult) SuccessCount() int {
	n := 0
	for _, d := range r.Devices {
		if d.Success {
			n++
		}
	}
	return n
}

// FailureCount returns how many devices failed.
func (r *FleetResult) FailureCount() int {
	return r.TotalCount() - r.SuccessCount()
}

// TotalCount returns the number of devices in the result.
func (r *FleetResult) TotalCount() int {
	return len(r.Devices)
}

// AllSuccessful reports whether every device in the result succeeded.
func (r *FleetResult) AllSuccessful() bool {
	for _, d := range r.Devices {
		if !d.Success {
			return false
		}
	}
	return true
}

// Failed returns the names of devices that did not succeed, in the
// unspecified iteration order of the underlying map (callers that need a
// stable order should sort the result themselves).
func (r *FleetResult) Failed() []string {
	var names []string
	for name, d := range r.Devices {
		if !d.Success {
			names = append(names, name)
		}
	}
	return names
}

// ProgressCallbacks lets a caller observe fleet-wide progress. Every
// callback may be invoked concurrently from arbitrary worker goroutines and
// must be safe to call that way; leave a field nil to skip that
// notification.
type ProgressCallbacks struct {
	OnPhaseStart     func(phase string, deviceCount int)
	OnDeviceStart    func(phase, device string)
	OnDeviceComplete func(phase string, result DeviceResult)
}

func (cb ProgressCallbacks) phaseStart(phase string, n int) {
	if cb.OnPhaseStart != nil {
		cb.OnPhaseStart(phase, n)
	}
}

func (cb ProgressCallbacks) deviceStart(phase, device string) {
	if cb.OnDeviceStart != nil {
		cb.OnDeviceStart(phase, device)
	}
}

func (cb ProgressCallbacks) deviceComplete(phase string, result DeviceResult) {
	if cb.OnDeviceComplete != nil {
		cb.OnDeviceComplete(phase, result)
	}
}
