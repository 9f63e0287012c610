package docs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	base := writeTempDoc(t, dir, "base.yaml", `
network:
  interfaces:
    lan:
      proto: static
      ipaddr: 192.168.1.1
  remote_policy:
    whitelist:
      - "interfaces.*.gateway"
`)
	os.Setenv("UCIFLEET_TEST_WIFI_KEY", "hunter2")
	defer os.Unsetenv("UCIFLEET_TEST_WIFI_KEY")
	overlay := writeTempDoc(t, dir, "overlay.yaml", `
wireless:
  radios:
    radio0:
      channel: "6"
  interfaces:
    default_radio0:
      key: "${oc.env:UCIFLEET_TEST_WIFI_KEY}"
`)

	tree, err := Load([]string{base, overlay})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	lan := tree.Package("network").Section("lan", "interface")
	ipaddr, _ := lan.Scalar("ipaddr")
	if ipaddr != "192.168.1.1" {
		t.Errorf("ipaddr = %q", ipaddr)
	}

	radio := tree.Package("wireless").Section("radio0", "wifi-device")
	channel, _ := radio.Scalar("channel")
	if channel != "6" {
		t.Errorf("channel = %q", channel)
	}

	iface := tree.Package("wireless").Section("default_radio0", "wifi-iface")
	key, _ := iface.Scalar("key")
	if key != "hunter2" {
		t.Errorf("key = %q, want resolved env value", key)
	}

	policy := tree.Package("network").Policy
	if policy == nil || len(policy.Whitelist) != 1 {
		t.Errorf("policy = %+v", policy)
	}
}

func TestLoad_DocumentErrorOnMissingFile(t *testing.T) {
	_, err := Load([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error for missing document")
	}
}
