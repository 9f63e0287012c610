//go:build e2e

package e2e_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ucifleet/ucifleet/pkg/fleet"
)

// fakeFleetTransport is an in-memory Transport double used across the whole
// fleet executor lifecycle (stage, commit, rollback) without dialing a real
// device, grounded on pkg/fleet/executor_test.go's fakeTransport.
type fakeFleetTransport struct {
	connected bool
	remote    map[string]string
	executed  []string
	failOn    string
}

func (f *fakeFleetTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeFleetTransport) Disconnect() error                 { f.connected = false; return nil }
func (f *fakeFleetTransport) IsOpen() bool                      { return f.connected }

func (f *fakeFleetTransport) Execute(ctx context.Context, command string) (string, string, int, error) {
	f.executed = append(f.executed, command)
	if f.failOn != "" && strings.Contains(command, f.failOn) {
		return "", "simulated failure", 1, nil
	}
	return "", "", 0, nil
}

func (f *fakeFleetTransport) GetUCIConfig(ctx context.Context, pkg string) (string, error) {
	return f.remote[pkg], nil
}

// TestFleetApply_StagesAndCommitsAcrossDevices drives fleet.Executor's
// Stage+Commit lifecycle across two devices with distinct desired-state
// documents and fake per-device transports.
func TestFleetApply_StagesAndCommitsAcrossDevices(t *testing.T) {
	dir := t.TempDir()

	leaf1Doc := filepath.Join(dir, "leaf1.yaml")
	writeFile(t, leaf1Doc, `
network:
  interfaces:
    lan:
      proto: static
      ipaddr: 10.0.0.1
`)
	leaf2Doc := filepath.Join(dir, "leaf2.yaml")
	writeFile(t, leaf2Doc, `
firewall:
  zones:
    lan:
      input: ACCEPT
`)

	fleetFile := filepath.Join(dir, "fleet.yaml")
	writeFile(t, fleetFile, fmt.Sprintf(`
defaults:
  username: root
  timeout: 30
  commit_delay: 1
devices:
  leaf1:
    target: 10.0.0.1
    configs: [%q]
  leaf2:
    target: 10.0.0.2
    configs: [%q]
`, leaf1Doc, leaf2Doc))

	inv, err := fleet.LoadInventory(fleetFile)
	if err != nil {
		t.Fatalf("LoadInventory failed: %v", err)
	}

	leaf1Transport := &fakeFleetTransport{remote: map[string]string{"network": ""}}
	leaf2Transport := &fakeFleetTransport{remote: map[string]string{"firewall": ""}}

	exec := fleet.NewExecutor(inv, fleet.ExecutorOptions{Workers: 2}).
		WithDialer(func(p fleet.ConnectionParams) fleet.Transport {
			if p.Target == "10.0.0.2" {
				return leaf2Transport
			}
			return leaf1Transport
		})

	devices := inv.FilterDevices("", nil)
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices selected, got %d", len(devices))
	}

	stageResult, commitResult := exec.Apply(context.Background(), devices)
	if !stageResult.AllSuccessful() {
		t.Fatalf("stage failed: %+v", stageResult.Devices)
	}
	if !commitResult.AllSuccessful() {
		t.Fatalf("commit failed: %+v", commitResult.Devices)
	}

	if !containsSubstring(leaf1Transport.executed, "network") {
		t.Errorf("leaf1 never received a network command: %v", leaf1Transport.executed)
	}
	if !containsSubstring(leaf2Transport.executed, "firewall") {
		t.Errorf("leaf2 never received a firewall command: %v", leaf2Transport.executed)
	}
	if !containsSubstring(leaf1Transport.executed, "uci commit") {
		t.Errorf("leaf1 was never committed: %v", leaf1Transport.executed)
	}
}

// TestFleetApply_RollsBackAllOnOneDeviceFailure verifies that a single
// device's staging failure rolls back the whole fleet, leaving no device
// committed.
func TestFleetApply_RollsBackAllOnOneDeviceFailure(t *testing.T) {
	dir := t.TempDir()

	okDoc := filepath.Join(dir, "ok.yaml")
	writeFile(t, okDoc, `
network:
  interfaces:
    lan: {proto: static, ipaddr: 10.0.0.9}
`)
	badDoc := filepath.Join(dir, "bad.yaml")
	writeFile(t, badDoc, `
firewall:
  zones:
    lan: {input: ACCEPT}
`)

	fleetFile := filepath.Join(dir, "fleet.yaml")
	writeFile(t, fleetFile, fmt.Sprintf(`
defaults:
  username: root
  timeout: 30
  commit_delay: 1
devices:
  leaf1:
    target: 10.0.0.1
    configs: [%q]
  leaf2:
    target: 10.0.0.2
    configs: [%q]
`, okDoc, badDoc))

	inv, err := fleet.LoadInventory(fleetFile)
	if err != nil {
		t.Fatalf("LoadInventory failed: %v", err)
	}

	okTransport := &fakeFleetTransport{remote: map[string]string{"network": ""}}
	badTransport := &fakeFleetTransport{remote: map[string]string{"firewall": ""}, failOn: "firewall"}

	exec := fleet.NewExecutor(inv, fleet.ExecutorOptions{Workers: 2}).
		WithDialer(func(p fleet.ConnectionParams) fleet.Transport {
			if p.Target == "10.0.0.2" {
				return badTransport
			}
			return okTransport
		})

	devices := inv.FilterDevices("", nil)
	result := exec.Stage(context.Background(), devices)
	if result.AllSuccessful() {
		t.Fatal("expected leaf2's simulated firewall failure to fail the whole stage")
	}
	if result.Devices["leaf1"].Success {
		t.Error("leaf1 should have been rolled back after leaf2 failed")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func containsSubstring(cmds []string, substr string) bool {
	for _, c := range cmds {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
