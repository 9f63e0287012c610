package uci

import "testing"

func hasCmd(cmds []Command, path, value string) bool {
	for _, c := range cmds {
		if c.Path == path && c.Value == value {
			return true
		}
	}
	return false
}

// S1. Port list diff.
func TestDiffPortListScenario(t *testing.T) {
	local := []Command{
		NewSet("network.br_lan", "device"),
		NewAddList("network.br_lan.ports", "lan1"),
		NewAddList("network.br_lan.ports", "bat0.10"),
	}
	remote := []Command{
		NewSet("network.br_lan", "device"),
		NewAddList("network.br_lan.ports", "lan1"),
		NewAddList("network.br_lan.ports", "lan2"),
		NewAddList("network.br_lan.ports", "lan3"),
	}
	d := Compute(local, remote, DiffOptions{})

	if !hasCmd(d.Common, "network.br_lan.ports", "lan1") {
		t.Error("expected lan1 in common")
	}
	if !hasCmd(d.ToAdd, "network.br_lan.ports", "bat0.10") {
		t.Error("expected bat0.10 in to_add")
	}
	if !hasCmd(d.RemoteOnly, "network.br_lan.ports", "lan2") || !hasCmd(d.RemoteOnly, "network.br_lan.ports", "lan3") {
		t.Error("expected lan2 and lan3 in remote_only")
	}
}

// S3. Whitelist preserves gateway.
func TestDiffWhitelistPreservesGateway(t *testing.T) {
	local := []Command{
		NewSet("network.lan", "interface"),
		NewSet("network.lan.proto", "static"),
		NewSet("network.lan.ipaddr", "192.168.1.1"),
	}
	remote := []Command{
		NewSet("network.lan", "interface"),
		NewSet("network.lan.proto", "static"),
		NewSet("network.lan.ipaddr", "192.168.1.1"),
		NewSet("network.lan.gateway", "192.168.1.254"),
	}
	policy := &Policy{Whitelist: []string{"interfaces.*.gateway"}}
	d := Compute(local, remote, DiffOptions{Policies: map[string]*Policy{"network": policy}})

	if !hasCmd(d.Whitelisted, "network.lan.gateway", "192.168.1.254") {
		t.Error("expected gateway in whitelisted")
	}
	if len(d.ToRemove) != 0 {
		t.Errorf("expected empty to_remove, got %+v", d.ToRemove)
	}
	if len(d.ToModify) != 0 {
		t.Errorf("expected empty to_modify, got %+v", d.ToModify)
	}
}

// S4. Mixed per-package removal.
func TestDiffMixedPerPackageRemoval(t *testing.T) {
	local := []Command{
		NewSet("network.lan", "interface"),
		NewSet("network.lan.ipaddr", "192.168.1.1"),
	}
	remote := []Command{
		NewSet("network.lan", "interface"),
		NewSet("network.lan.ipaddr", "192.168.1.1"),
		NewSet("network.guest", "interface"),
		NewSet("network.guest.proto", "static"),
		NewSet("wireless.old_wifi", "wifi-iface"),
		NewSet("wireless.old_wifi.ssid", "old"),
		NewSet("dhcp.x", "dhcp"),
		NewSet("dhcp.x.interface", "lan"),
	}
	d := Compute(local, remote, DiffOptions{Removal: RemoveForPackages("wireless")})

	if !hasCmd(d.RemoteOnly, "network.guest.proto", "static") {
		t.Error("expected network.guest.proto in remote_only")
	}
	if !hasCmd(d.RemoteOnly, "dhcp.x.interface", "lan") {
		t.Error("expected dhcp.x.interface in remote_only")
	}
	if !hasCmd(d.ToRemove, "wireless.old_wifi.ssid", "old") {
		t.Error("expected wireless.old_wifi.ssid in to_remove")
	}
}

// I5 / P3-ish: scalar path differing appears exactly once in to_modify.
func TestDiffScalarModify(t *testing.T) {
	local := []Command{NewSet("network.lan.proto", "static")}
	remote := []Command{NewSet("network.lan.proto", "dhcp")}
	d := Compute(local, remote, DiffOptions{})

	if len(d.ToModify) != 1 {
		t.Fatalf("expected exactly one modify pair, got %d", len(d.ToModify))
	}
	if d.ToModify[0].Local.Value != "static" || d.ToModify[0].Remote.Value != "dhcp" {
		t.Errorf("unexpected modify pair: %+v", d.ToModify[0])
	}
	if len(d.ToAdd) != 0 || len(d.ToRemove) != 0 || len(d.Common) != 0 {
		t.Error("modified path must not appear in add/remove/common")
	}
}

// I4: the same list path contributes independently per element.
func TestDiffListElementsIndependent(t *testing.T) {
	local := []Command{
		NewAddList("network.lan.dns", "8.8.8.8"),
		NewAddList("network.lan.dns", "1.1.1.1"),
	}
	remote := []Command{
		NewAddList("network.lan.dns", "8.8.8.8"),
		NewAddList("network.lan.dns", "9.9.9.9"),
	}
	d := Compute(local, remote, DiffOptions{Removal: RemoveAllDirective()})

	if !hasCmd(d.Common, "network.lan.dns", "8.8.8.8") {
		t.Error("expected shared element in common")
	}
	if !hasCmd(d.ToAdd, "network.lan.dns", "1.1.1.1") {
		t.Error("expected local-only element in to_add")
	}
	if !hasCmd(d.ToRemove, "network.lan.dns", "9.9.9.9") {
		t.Error("expected remote-only element in to_remove under remove-all")
	}
}

func TestDiffEmptyWhenIdentical(t *testing.T) {
	cmds := []Command{
		NewSet("network.lan", "interface"),
		NewSet("network.lan.proto", "static"),
	}
	d := Compute(cmds, cmds, DiffOptions{})
	if !d.IsEmpty() {
		t.Errorf("expected empty diff for identical trees, got %+v", d)
	}
}
