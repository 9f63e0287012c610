package docs

import "github.com/ucifleet/ucifleet/pkg/uci"

// Load merges an ordered list of desired-state document paths, resolves
// interpolation references, and builds the resulting uci.Tree. This is the
// C8 layered-loader entry point used by both single-device and fleet
// device-config loading.
func Load(paths []string) (*uci.Tree, error) {
	merged, err := MergeLayers(paths)
	if err != nil {
		return nil, err
	}
	if err := Interpolate(merged); err != nil {
		return nil, err
	}
	return BuildTree(merged)
}
