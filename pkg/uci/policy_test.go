package uci

import "testing"

func TestWhitelistExactMatch(t *testing.T) {
	p := &Policy{Whitelist: []string{"devices.br_lan.ports"}}
	if !p.IsPathWhitelisted("devices.br_lan.ports") {
		t.Error("expected exact match to be whitelisted")
	}
	if p.IsPathWhitelisted("devices.br_lan.type") {
		t.Error("did not expect sibling option to match")
	}
}

func TestWhitelistSingleWildcard(t *testing.T) {
	p := &Policy{Whitelist: []string{"devices.*.lan"}}
	if !p.IsPathWhitelisted("devices.br_lan.lan") {
		t.Error("expected single-wildcard match")
	}
	if p.IsPathWhitelisted("devices.br_lan.guest.lan") {
		t.Error("single wildcard must not span two segments")
	}
}

func TestWhitelistRecursiveWildcard(t *testing.T) {
	p := &Policy{Whitelist: []string{"**"}}
	for _, path := range []string{"a", "a.b", "a.b.c", ""} {
		if !p.IsPathWhitelisted(path) {
			t.Errorf("expected %q to match **", path)
		}
	}
}

func TestWhitelistSuffixWildcardIncludesSectionLine(t *testing.T) {
	p := &Policy{Whitelist: []string{"interfaces.guest.*"}}
	if !p.IsPathWhitelisted("interfaces.guest.gateway") {
		t.Error("expected interfaces.guest.gateway to match")
	}
	if !p.IsPathWhitelisted("interfaces.guest.proto") {
		t.Error("expected interfaces.guest.proto to match")
	}
	// Special rule: pattern ending in .* also matches with .* stripped.
	if !p.IsPathWhitelisted("interfaces.guest") {
		t.Error("expected section-definition path interfaces.guest to also match")
	}
	if p.IsPathWhitelisted("interfaces.other.gateway") {
		t.Error("did not expect a different interface to match")
	}
}

func TestWhitelistGlobInSegment(t *testing.T) {
	p := &Policy{Whitelist: []string{"devices.br_*.*"}}
	if !p.IsPathWhitelisted("devices.br_lan.type") {
		t.Error("expected glob-in-segment match")
	}
	if p.IsPathWhitelisted("devices.wan.type") {
		t.Error("did not expect non-matching prefix to match")
	}
}

func TestWhitelistCombinedPatterns(t *testing.T) {
	p := &Policy{Whitelist: []string{"devices.br_lan.ports", "hosts.guest_*.*"}}
	if !p.IsPathWhitelisted("hosts.guest_printer.mac") {
		t.Error("expected combined pattern match on hosts.guest_printer.mac")
	}
	if p.IsPathWhitelisted("hosts.office_printer.mac") {
		t.Error("did not expect non-guest host to match")
	}
}

func TestLegacyAllowedSectionsFallback(t *testing.T) {
	p := &Policy{AllowedSections: []string{"br_*"}}
	if !p.ShouldKeepRemotePath("br_lan.ports", "lan1") {
		t.Error("expected legacy allowed_sections glob to keep the path")
	}
	if p.ShouldKeepRemotePath("wan.ports", "lan1") {
		t.Error("did not expect non-matching section to be kept")
	}
}

func TestLegacyAllowedValuesFallback(t *testing.T) {
	p := &Policy{AllowedValues: []string{"192.168.*"}}
	if !p.ShouldKeepRemotePath("lan.ipaddr", "192.168.1.1") {
		t.Error("expected legacy allowed_values glob to keep the path")
	}
}

func TestNewWhitelistTakesPrecedenceOverLegacy(t *testing.T) {
	p := &Policy{
		Whitelist:       []string{"devices.br_lan.ports"},
		AllowedSections: []string{"*"}, // would keep everything if consulted
	}
	if p.ShouldKeepRemotePath("wan.ipaddr", "1.2.3.4") {
		t.Error("non-empty whitelist must suppress legacy fallback entirely")
	}
}

// P6. Whitelisted paths never appear in to_remove regardless of removal
// directive.
func TestWhitelistNeverRemoved(t *testing.T) {
	remote := []Command{
		NewSet("network.lan", "interface"),
		NewSet("network.lan.gateway", "192.168.1.254"),
	}
	local := []Command{
		NewSet("network.lan", "interface"),
	}
	policy := &Policy{Whitelist: []string{"interfaces.*.gateway"}}
	for _, directive := range []RemovalDirective{KeepAll(), RemoveAllDirective(), RemoveForPackages("network")} {
		diff := Compute(local, remote, DiffOptions{
			Removal:  directive,
			Policies: map[string]*Policy{"network": policy},
		})
		for _, c := range diff.ToRemove {
			if c.Path == "network.lan.gateway" {
				t.Errorf("gateway must never be removed under directive %+v", directive)
			}
		}
	}
}
