package uci

import (
	"sort"
	"strings"
)

// ModifyPair is an observed→desired command pair for a scalar path whose
// value differs between remote and local.
type ModifyPair struct {
	Remote Command
	Local  Command
}

// RemovalDirective selects which packages' remote-only state should be
// proposed for removal rather than merely reported.
type RemovalDirective struct {
	RemoveAll      bool
	RemovePackages map[string]bool
}

// KeepAll is the zero-value directive: remote-only state is never removed.
func KeepAll() RemovalDirective { return RemovalDirective{} }

// RemoveAllDirective removes remote-only state for every package.
func RemoveAllDirective() RemovalDirective { return RemovalDirective{RemoveAll: true} }

// RemoveForPackages removes remote-only state only for the named packages.
func RemoveForPackages(pkgs ...string) RemovalDirective {
	m := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		m[p] = true
	}
	return RemovalDirective{RemovePackages: m}
}

func (d RemovalDirective) shouldRemove(pkg string) bool {
	return d.RemoveAll || d.RemovePackages[pkg]
}

// DiffOptions bundles the removal directive and per-package whitelist
// policies used to classify remote-only paths.
type DiffOptions struct {
	Removal  RemovalDirective
	Policies map[string]*Policy
}

// Diff is the immutable classification of local ∪ remote paths, per §3/§4.5.
type Diff struct {
	ToAdd       []Command
	ToModify    []ModifyPair
	ToRemove    []Command
	RemoteOnly  []Command
	Whitelisted []Command
	Common      []Command

	LocalSections  map[string]bool // "package.section"
	RemoteSections map[string]bool
}

func sectionKey(pkg, section string) string { return pkg + "." + section }

func relPath(pkg, path string) string {
	return strings.TrimPrefix(path, pkg+".")
}

// policyFor returns the policy for a package, or nil if none configured.
func (o DiffOptions) policyFor(pkg string) *Policy {
	if o.Policies == nil {
		return nil
	}
	return o.Policies[pkg]
}

// Compute classifies local and remote command sequences per the procedure
// in spec §4.5.
func Compute(local, remote []Command, opts DiffOptions) *Diff {
	d := &Diff{
		LocalSections:  make(map[string]bool),
		RemoteSections: make(map[string]bool),
	}

	localScalar := make(map[string]string)
	localScalarCmd := make(map[string]Command)
	localLists := make(map[string][]string)
	localListCmd := make(map[string]map[string]Command) // path -> value -> cmd
	localTypes := make(map[string]string) // "pkg.section" -> section type

	remoteScalar := make(map[string]string)
	remoteScalarCmd := make(map[string]Command)
	remoteLists := make(map[string][]string)
	remoteListCmd := make(map[string]map[string]Command)
	remoteTypes := make(map[string]string)

	for _, c := range local {
		switch {
		case c.IsSectionPath() && c.Action == ActionSet:
			d.LocalSections[c.Path] = true
			localTypes[c.Path] = c.Value
		case c.IsOptionPath() && c.Action == ActionSet:
			localScalar[c.Path] = c.Value
			localScalarCmd[c.Path] = c
		case c.IsOptionPath() && c.Action == ActionAddList:
			localLists[c.Path] = append(localLists[c.Path], c.Value)
			if localListCmd[c.Path] == nil {
				localListCmd[c.Path] = make(map[string]Command)
			}
			localListCmd[c.Path][c.Value] = c
		}
	}
	for _, c := range remote {
		switch {
		case c.IsSectionPath() && c.Action == ActionSet:
			d.RemoteSections[c.Path] = true
			remoteTypes[c.Path] = c.Value
		case c.IsOptionPath() && c.Action == ActionSet:
			remoteScalar[c.Path] = c.Value
			remoteScalarCmd[c.Path] = c
		case c.IsOptionPath() && c.Action == ActionAddList:
			remoteLists[c.Path] = append(remoteLists[c.Path], c.Value)
			if remoteListCmd[c.Path] == nil {
				remoteListCmd[c.Path] = make(map[string]Command)
			}
			remoteListCmd[c.Path][c.Value] = c
		}
	}

	// sectionTypeOf resolves the declared type of "pkg.section" (the
	// section-level path prefix of an option path), preferring the local
	// declaration when both sides declare the section.
	sectionTypeOf := func(path string) string {
		segs := strings.SplitN(path, ".", 3)
		if len(segs) < 2 {
			return ""
		}
		sectionPath := segs[0] + "." + segs[1]
		if t, ok := localTypes[sectionPath]; ok {
			return t
		}
		return remoteTypes[sectionPath]
	}

	// Step 3: local scalars, plus local section lines that are new.
	for _, c := range local {
		if !(c.IsSectionPath() && c.Action == ActionSet) {
			continue
		}
		if !d.RemoteSections[c.Path] {
			d.ToAdd = append(d.ToAdd, c)
		}
	}
	for _, path := range sortedKeys(localScalar) {
		lv := localScalar[path]
		lcmd := localScalarCmd[path]
		rv, inRemote := remoteScalar[path]
		switch {
		case !inRemote:
			d.ToAdd = append(d.ToAdd, lcmd)
		case rv == lv:
			d.Common = append(d.Common, lcmd)
		default:
			d.ToModify = append(d.ToModify, ModifyPair{Remote: remoteScalarCmd[path], Local: lcmd})
		}
	}

	// Step 4: local list elements.
	for _, path := range sortedKeys(localLists) {
		values := localLists[path]
		remoteSet := make(map[string]bool, len(remoteLists[path]))
		for _, v := range remoteLists[path] {
			remoteSet[v] = true
		}
		for _, v := range values {
			cmd := localListCmd[path][v]
			if remoteSet[v] {
				d.Common = append(d.Common, cmd)
			} else {
				d.ToAdd = append(d.ToAdd, cmd)
			}
		}
	}

	// Step 5: remote scalars not present locally.
	for _, path := range sortedKeys(remoteScalar) {
		if _, inLocal := localScalar[path]; inLocal {
			continue
		}
		rv := remoteScalar[path]
		cmd := remoteScalarCmd[path]
		d.classifyRemoteOnly(cmd, path, rv, opts, sectionTypeOf(path))
	}

	// Step 6: remote list elements not present locally.
	for _, path := range sortedKeys(remoteLists) {
		values := remoteLists[path]
		localSet := make(map[string]bool, len(localLists[path]))
		for _, v := range localLists[path] {
			localSet[v] = true
		}
		for _, v := range values {
			if localSet[v] {
				continue
			}
			cmd := remoteListCmd[path][v]
			d.classifyRemoteOnly(cmd, path, v, opts, sectionTypeOf(path))
		}
	}

	return d
}

// sortedKeys returns m's keys in ascending order, for deterministic
// classification order across repeated runs over identical input (spec
// §4.6's stable-formatting requirement).
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *Diff) classifyRemoteOnly(cmd Command, path, value string, opts DiffOptions, sectionType string) {
	pkg := cmd.Package()
	policy := opts.policyFor(pkg)
	rel := relPath(pkg, path)
	keep := policy.ShouldKeepRemotePath(rel, value)
	if !keep {
		// Whitelist patterns are written against the document's logical
		// group (e.g. "interfaces.*.gateway"), not the raw section name;
		// retry with the path rewritten into that form (SPEC_FULL.md §3).
		if grouped, ok := groupRelPath(pkg, sectionType, path); ok {
			keep = policy.ShouldKeepRemotePath(grouped, value)
		}
	}
	if keep {
		d.Whitelisted = append(d.Whitelisted, cmd)
		return
	}
	if opts.Removal.shouldRemove(pkg) {
		d.ToRemove = append(d.ToRemove, cmd)
	} else {
		d.RemoteOnly = append(d.RemoteOnly, cmd)
	}
}

// IsEmpty reports whether the diff proposes no changes at all (common and
// whitelisted/remote-only entries do not count as changes).
func (d *Diff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToModify) == 0 && len(d.ToRemove) == 0
}
