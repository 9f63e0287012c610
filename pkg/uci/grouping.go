package uci

import "strings"

// sectionGroup mirrors one row of pkg/docs's groupMappings table (SPEC_FULL.md
// §3): the logical-group name a document author writes under is not the UCI
// section type, so whitelist patterns are written against the logical group
// (e.g. "interfaces.*.gateway"), not the section type ("interface"). This
// table lets the diff engine translate a concrete "pkg.section" UCI path
// back into its logical-group form before matching it against a whitelist
// pattern. Duplicated here rather than imported from pkg/docs, which already
// imports pkg/uci — kept in sync by hand; pkg/docs/types.go is authoritative
// for the document-building direction.
var sectionGroups = []struct {
	pkg, sectionType, logicalGroup string
}{
	{"network", "device", "devices"},
	{"network", "interface", "interfaces"},
	{"wireless", "wifi-device", "radios"},
	{"wireless", "wifi-iface", "interfaces"},
	{"dhcp", "dhcp", "sections"},
	{"dhcp", "host", "hosts"},
	{"firewall", "zone", "zones"},
	{"firewall", "forwarding", "forwardings"},
	{"sqm", "queue", "queues"},
}

func logicalGroupFor(pkg, sectionType string) (string, bool) {
	for _, g := range sectionGroups {
		if g.pkg == pkg && g.sectionType == sectionType {
			return g.logicalGroup, true
		}
	}
	return "", false
}

// groupRelPath rewrites a full "pkg.section[.option]" path into its
// logical-group form ("group.section[.option]"), the form whitelist
// patterns in desired-state documents are written against. Returns false if
// sectionType has no known logical group (e.g. a legacy or unrecognized
// section type), in which case callers should fall back to the plain
// package-relative path.
func groupRelPath(pkg, sectionType, path string) (string, bool) {
	group, ok := logicalGroupFor(pkg, sectionType)
	if !ok {
		return "", false
	}
	segs := strings.Split(path, ".")
	if len(segs) < 2 {
		return "", false
	}
	rewritten := append([]string{group}, segs[1:]...)
	return strings.Join(rewritten, "."), true
}
