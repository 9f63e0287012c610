package render

import (
	"strings"
	"testing"

	"github.com/ucifleet/ucifleet/pkg/uci"
)

func TestFlatColorInvariant(t *testing.T) {
	local := []uci.Command{uci.NewSet("network.lan.proto", "static")}
	remote := []uci.Command{uci.NewSet("network.lan.proto", "dhcp")}
	d := uci.Compute(local, remote, uci.DiffOptions{})

	plain := Flat(d, false)
	colored := Flat(d, true)

	if strings.Contains(plain, "\x1b[") {
		t.Error("plain output must not contain ANSI escapes")
	}
	if !strings.Contains(colored, "\x1b[") {
		t.Error("colored output must contain ANSI escapes")
	}
	if plain == colored {
		t.Error("plain and colored output should differ")
	}
}

func TestFlatMasksSensitiveValue(t *testing.T) {
	local := []uci.Command{uci.NewSet("wireless.w0.key", "MySecret123")}
	d := uci.Compute(local, nil, uci.DiffOptions{})
	out := Flat(d, false)
	if strings.Contains(out, "MySecret123") {
		t.Error("flat render must mask sensitive values")
	}
	if !strings.Contains(out, "MyS********") {
		t.Errorf("expected masked value in output: %s", out)
	}
}

func TestTreeOmitsWhitelistedEntries(t *testing.T) {
	local := []uci.Command{uci.NewSet("network.lan", "interface")}
	remote := []uci.Command{
		uci.NewSet("network.lan", "interface"),
		uci.NewSet("network.lan.gateway", "192.168.1.254"),
	}
	policy := &uci.Policy{Whitelist: []string{"interfaces.*.gateway"}}
	d := uci.Compute(local, remote, uci.DiffOptions{Policies: map[string]*uci.Policy{"network": policy}})

	out := Tree(d, false)
	if strings.Contains(out, "192.168.1.254") {
		t.Error("whitelisted entries must not appear in the tree view")
	}
	if !strings.Contains(out, "1 whitelisted") {
		t.Errorf("expected whitelisted count in summary: %s", out)
	}
}

func TestTreeSectionTags(t *testing.T) {
	local := []uci.Command{
		uci.NewSet("network.lan", "interface"),
		uci.NewSet("network.lan.proto", "static"),
	}
	remote := []uci.Command{
		uci.NewSet("network.guest", "interface"),
		uci.NewSet("network.guest.proto", "dhcp"),
	}
	d := uci.Compute(local, remote, uci.DiffOptions{})
	out := Tree(d, false)
	if !strings.Contains(out, "lan (config-only)") {
		t.Errorf("expected config-only tag: %s", out)
	}
	if !strings.Contains(out, "guest (remote-only)") {
		t.Errorf("expected remote-only tag: %s", out)
	}
}
