package uci

import (
	"fmt"
	"strings"
)

// Section is one named (or anonymous) UCI section: an ordered set of scalar
// options and an ordered set of list options.
type Section struct {
	Name        string
	Type        string
	scalarNames []string
	scalars     map[string]string
	listNames   []string
	lists       map[string][]string
}

// NewSection creates an empty section of the given type.
func NewSection(name, sectionType string) *Section {
	return &Section{
		Name:    name,
		Type:    sectionType,
		scalars: make(map[string]string),
		lists:   make(map[string][]string),
	}
}

// IsAnonymous reports whether the section name is the `@type[index]` form.
func (s *Section) IsAnonymous() bool {
	return strings.HasPrefix(s.Name, "@")
}

// SetScalar sets (or overwrites in place) a scalar option, preserving
// first-insertion order.
func (s *Section) SetScalar(option, value string) {
	if _, ok := s.scalars[option]; !ok {
		s.scalarNames = append(s.scalarNames, option)
	}
	s.scalars[option] = value
}

// AppendList appends one element to a list option, preserving order.
func (s *Section) AppendList(option, value string) {
	if _, ok := s.lists[option]; !ok {
		s.listNames = append(s.listNames, option)
	}
	s.lists[option] = append(s.lists[option], value)
}

// ScalarOptions returns option names in insertion order.
func (s *Section) ScalarOptions() []string { return append([]string(nil), s.scalarNames...) }

// ListOptions returns list option names in insertion order.
func (s *Section) ListOptions() []string { return append([]string(nil), s.listNames...) }

// Scalar returns a scalar option's value.
func (s *Section) Scalar(option string) (string, bool) {
	v, ok := s.scalars[option]
	return v, ok
}

// List returns a list option's values in order.
func (s *Section) List(option string) []string {
	return append([]string(nil), s.lists[option]...)
}

// Package holds a package's sections in deterministic emission order, plus
// an optional remote-preservation policy.
type Package struct {
	Name         string
	sectionNames []string
	sections     map[string]*Section
	Policy       *Policy
}

// NewPackage creates an empty package.
func NewPackage(name string) *Package {
	return &Package{Name: name, sections: make(map[string]*Section)}
}

// Section returns (creating if absent) the named section of the given type.
// Re-requesting an existing section ignores sectionType (callers are
// expected to be consistent).
func (p *Package) Section(name, sectionType string) *Section {
	if sec, ok := p.sections[name]; ok {
		return sec
	}
	sec := NewSection(name, sectionType)
	p.sections[name] = sec
	p.sectionNames = append(p.sectionNames, name)
	return sec
}

// Sections returns sections in insertion order.
func (p *Package) Sections() []*Section {
	out := make([]*Section, 0, len(p.sectionNames))
	for _, n := range p.sectionNames {
		out = append(out, p.sections[n])
	}
	return out
}

// SectionNames returns section names in insertion order.
func (p *Package) SectionNames() []string { return append([]string(nil), p.sectionNames...) }

// HasSection reports whether a section by that name exists.
func (p *Package) HasSection(name string) bool {
	_, ok := p.sections[name]
	return ok
}

// EmitCommands yields the deterministic command sequence for this package:
// for each section in insertion order, the section-definition `set`
// followed by its scalar `set`s and list `add_list`s in insertion order.
func (p *Package) EmitCommands() []Command {
	var cmds []Command
	for _, sec := range p.Sections() {
		sectionPath := fmt.Sprintf("%s.%s", p.Name, sec.Name)
		cmds = append(cmds, NewSet(sectionPath, sec.Type))
		for _, opt := range sec.ScalarOptions() {
			v, _ := sec.Scalar(opt)
			cmds = append(cmds, NewSet(fmt.Sprintf("%s.%s", sectionPath, opt), v))
		}
		for _, opt := range sec.ListOptions() {
			for _, v := range sec.List(opt) {
				cmds = append(cmds, NewAddList(fmt.Sprintf("%s.%s", sectionPath, opt), v))
			}
		}
	}
	return cmds
}

// Tree is the in-memory desired-state configuration: packages → sections →
// options, addressable by package name.
type Tree struct {
	names    []string
	packages map[string]*Package
}

// NewTree creates an empty config tree.
func NewTree() *Tree {
	return &Tree{packages: make(map[string]*Package)}
}

// Package returns (creating if absent) the named package.
func (t *Tree) Package(name string) *Package {
	if pkg, ok := t.packages[name]; ok {
		return pkg
	}
	pkg := NewPackage(name)
	t.packages[name] = pkg
	t.names = append(t.names, name)
	return pkg
}

// Packages returns packages in insertion order.
func (t *Tree) Packages() []*Package {
	out := make([]*Package, 0, len(t.names))
	for _, n := range t.names {
		out = append(out, t.packages[n])
	}
	return out
}

// PackageNames returns package names in insertion order.
func (t *Tree) PackageNames() []string { return append([]string(nil), t.names...) }

// HasPackage reports whether a package by that name has been created.
func (t *Tree) HasPackage(name string) bool {
	_, ok := t.packages[name]
	return ok
}

// EmitCommands concatenates EmitCommands for every package in insertion
// order.
func (t *Tree) EmitCommands() []Command {
	var cmds []Command
	for _, pkg := range t.Packages() {
		cmds = append(cmds, pkg.EmitCommands()...)
	}
	return cmds
}
