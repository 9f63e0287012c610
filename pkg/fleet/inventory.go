// Package fleet implements the bounded-parallel two-phase fleet executor
// (spec component C9): staging UCI changes across many devices, fail-fast
// abort with rollback, and a coordinated delayed commit. Grounded on
// wrtkit.fleet / wrtkit.fleet_executor (original_source), translated from
// ThreadPoolExecutor/as_completed to goroutines, a semaphore channel, and a
// sync.WaitGroup, per the teacher's pkg/newtlab worker-pool idiom.
package fleet

import (
	"path/filepath"
	"time"

	"github.com/ucifleet/ucifleet/pkg/docs"
	"github.com/ucifleet/ucifleet/pkg/ucierr"
	"gopkg.in/yaml.v3"
)

// Defaults holds fleet-wide defaults applied when a device doesn't
// override them.
type Defaults struct {
	Timeout     int    `yaml:"timeout"`
	Username    string `yaml:"username"`
	CommitDelay int    `yaml:"commit_delay"`
}

// Device is one device entry in the fleet inventory (§6.3).
type Device struct {
	Target   string   `yaml:"target"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	KeyFile  string   `yaml:"key_file,omitempty"`
	Timeout  int      `yaml:"timeout,omitempty"`
	Configs  []string `yaml:"configs,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

// Inventory is a fleet inventory document: defaults, named config-layer
// aliases, and the device table.
type Inventory struct {
	Defaults     Defaults          `yaml:"defaults"`
	ConfigLayers map[string]string `yaml:"config_layers"`
	Devices      map[string]Device `yaml:"devices"`

	path string
}

// LoadInventory reads a fleet inventory file, resolving `${oc.env:...}` and
// `${config_layers.*}` references before decoding into typed fields.
func LoadInventory(path string) (*Inventory, error) {
	doc, err := docs.LoadDocument(path)
	if err != nil {
		return nil, err
	}
	if err := docs.Interpolate(doc); err != nil {
		return nil, err
	}

	resolved, err := yaml.Marshal(doc)
	if err != nil {
		return nil, ucierr.Wrap(ucierr.KindDocumentError, "re-encoding resolved fleet document", err)
	}

	inv := &Inventory{Defaults: Defaults{Timeout: 30, Username: "root", CommitDelay: 10}}
	if err := yaml.Unmarshal(resolved, inv); err != nil {
		return nil, ucierr.Wrap(ucierr.KindDocumentError, "decoding fleet inventory", err)
	}
	inv.path = path

	if inv.Defaults.Timeout == 0 {
		inv.Defaults.Timeout = 30
	}
	if inv.Defaults.Username == "" {
		inv.Defaults.Username = "root"
	}
	if inv.Defaults.CommitDelay == 0 {
		inv.Defaults.CommitDelay = 10
	}

	return inv, nil
}

// BaseDir returns the directory the inventory file lives in, used to
// resolve device config paths that are relative.
func (inv *Inventory) BaseDir() string {
	return filepath.Dir(inv.path)
}

// ConnectionParams is a device's resolved connection parameters after
// applying fleet defaults.
type ConnectionParams struct {
	Target   string
	Username string
	Password string
	KeyFile  string
	Timeout  time.Duration
}

// ConnectionParamsFor resolves a device's connection parameters, applying
// fleet defaults where the device doesn't override them. Grounded on
// wrtkit.fleet.get_device_connection_params.
func (inv *Inventory) ConnectionParamsFor(d Device) ConnectionParams {
	username := d.Username
	if username == "" {
		username = inv.Defaults.Username
	}
	timeout := d.Timeout
	if timeout == 0 {
		timeout = inv.Defaults.Timeout
	}
	return ConnectionParams{
		Target:   d.Target,
		Username: username,
		Password: d.Password,
		KeyFile:  d.KeyFile,
		Timeout:  time.Duration(timeout) * time.Second,
	}
}

// ResolvedConfigPaths returns the device's config file paths with any
// relative paths resolved against the inventory file's directory.
func (inv *Inventory) ResolvedConfigPaths(d Device) []string {
	base := inv.BaseDir()
	paths := make([]string, len(d.Configs))
	for i, p := range d.Configs {
		if filepath.IsAbs(p) {
			paths[i] = p
		} else {
			paths[i] = filepath.Join(base, p)
		}
	}
	return paths
}

// FilterDevices selects devices by an optional name glob and an optional
// set of required tags (AND logic — a device must carry every requested
// tag). Grounded on wrtkit.fleet.filter_devices.
func (inv *Inventory) FilterDevices(targetGlob string, tags []string) map[string]Device {
	result := make(map[string]Device)
	for name, d := range inv.Devices {
		if targetGlob != "" {
			if ok, _ := filepath.Match(targetGlob, name); !ok {
				continue
			}
		}
		if len(tags) > 0 {
			have := make(map[string]bool, len(d.Tags))
			for _, t := range d.Tags {
				have[t] = true
			}
			matched := true
			for _, want := range tags {
				if !have[want] {
					matched = false
					break
				}
			}
			if !matched {
				continue
			}
		}
		result[name] = d
	}
	return result
}
