// Package render provides textual diff views (flat and tree) over a
// uci.Diff, with stable formatting and sensitive-value masking.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ucifleet/ucifleet/pkg/cli"
	"github.com/ucifleet/ucifleet/pkg/uci"
)

// colorFn names the pkg/cli paint functions this package uses; cyan has no
// pkg/cli equivalent, so it's added locally alongside the teacher's set.
type colorFn func(string) string

func cyan(s string) string { return "\x1b[36m" + s + "\x1b[0m" }

const (
	colorGreen  = iota
	colorYellow
	colorCyan
	colorRed
	colorBold
	colorDim
)

var colorFns = map[int]colorFn{
	colorGreen:  cli.Green,
	colorYellow: cli.Yellow,
	colorCyan:   cyan,
	colorRed:    cli.Red,
	colorBold:   cli.Bold,
	colorDim:    cli.Dim,
}

func paint(color bool, code int, s string) string {
	if !color {
		return s
	}
	return colorFns[code](s)
}

// Flat renders the sequential-block presentation of spec §4.6.
func Flat(d *uci.Diff, color bool) string {
	var b strings.Builder

	if len(d.ToAdd) > 0 {
		b.WriteString(paint(color, colorBold, "Commands to add:") + "\n")
		for _, c := range d.ToAdd {
			fmt.Fprintf(&b, "  %s\n", paint(color, colorGreen, "+ "+c.DisplayString()))
		}
		b.WriteString("\n")
	}
	if len(d.ToModify) > 0 {
		b.WriteString(paint(color, colorBold, "Commands to modify:") + "\n")
		for _, m := range d.ToModify {
			fmt.Fprintf(&b, "  %s\n", paint(color, colorRed, "- "+m.Remote.DisplayString()))
			fmt.Fprintf(&b, "  %s\n", paint(color, colorGreen, "+ "+m.Local.DisplayString()))
		}
		b.WriteString("\n")
	}
	if len(d.ToRemove) > 0 {
		b.WriteString(paint(color, colorBold, "Commands to remove:") + "\n")
		for _, c := range d.ToRemove {
			fmt.Fprintf(&b, "  %s\n", paint(color, colorRed, "- "+c.DisplayString()))
		}
		b.WriteString("\n")
	}
	if len(d.RemoteOnly) > 0 {
		b.WriteString(paint(color, colorBold, "Remote-only settings (not managed by config):") + "\n")
		for _, c := range d.RemoteOnly {
			fmt.Fprintf(&b, "  %s\n", paint(color, colorYellow, "* "+c.DisplayString()))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Summary: %d to add, %d to modify, %d to remove, %d remote-only, %d whitelisted, %d unchanged\n",
		len(d.ToAdd), len(d.ToModify), len(d.ToRemove), len(d.RemoteOnly), len(d.Whitelisted), len(d.Common))

	return b.String()
}

// sectionGroup collects a single (package, section)'s entries for tree
// rendering.
type sectionGroup struct {
	pkg, section string
	adds         []uci.Command
	modifies     []uci.ModifyPair
	removes      []uci.Command
	remoteOnly   []uci.Command
}

func (g *sectionGroup) key() string { return g.pkg + "\x00" + g.section }

// Tree renders the hierarchical package/section presentation of spec §4.6.
// Whitelisted entries never appear in either view; they contribute only to
// the summary count.
func Tree(d *uci.Diff, color bool) string {
	groups := make(map[string]*sectionGroup)
	var order []string

	group := func(cmd uci.Command) *sectionGroup {
		pkg := cmd.Package()
		segs := cmd.Segments()
		section := ""
		if len(segs) >= 2 {
			section = segs[1]
		}
		k := pkg + "\x00" + section
		g, ok := groups[k]
		if !ok {
			g = &sectionGroup{pkg: pkg, section: section}
			groups[k] = g
			order = append(order, k)
		}
		return g
	}

	for _, c := range d.ToAdd {
		group(c).adds = append(group(c).adds, c)
	}
	for _, m := range d.ToModify {
		group(m.Local).modifies = append(group(m.Local).modifies, m)
	}
	for _, c := range d.ToRemove {
		group(c).removes = append(group(c).removes, c)
	}
	for _, c := range d.RemoteOnly {
		group(c).remoteOnly = append(group(c).remoteOnly, c)
	}

	sort.Strings(order)

	byPkg := make(map[string][]string)
	var pkgOrder []string
	for _, k := range order {
		g := groups[k]
		if _, ok := byPkg[g.pkg]; !ok {
			pkgOrder = append(pkgOrder, g.pkg)
		}
		byPkg[g.pkg] = append(byPkg[g.pkg], k)
	}
	sort.Strings(pkgOrder)

	var b strings.Builder
	for _, pkg := range pkgOrder {
		fmt.Fprintf(&b, "%s\n", paint(color, colorBold, pkg))
		keys := byPkg[pkg]
		for si, k := range keys {
			g := groups[k]
			branch := "├── "
			if si == len(keys)-1 {
				branch = "└── "
			}
			tag := sectionTag(d, g)
			fmt.Fprintf(&b, "%s%s%s\n", branch, g.section, tag)
			writeSectionEntries(&b, g, color)
		}
	}

	fmt.Fprintf(&b, "\nSummary: %d to add, %d to modify, %d to remove, %d remote-only, %d whitelisted, %d unchanged\n",
		len(d.ToAdd), len(d.ToModify), len(d.ToRemove), len(d.RemoteOnly), len(d.Whitelisted), len(d.Common))

	return b.String()
}

func sectionTag(d *uci.Diff, g *sectionGroup) string {
	key := g.pkg + "." + g.section
	local := d.LocalSections[key]
	remote := d.RemoteSections[key]
	switch {
	case local && !remote:
		return " (config-only)"
	case remote && !local:
		return " (remote-only)"
	default:
		return ""
	}
}

func writeSectionEntries(b *strings.Builder, g *sectionGroup, color bool) {
	for _, c := range g.adds {
		fmt.Fprintf(b, "│   %s\n", paint(color, colorGreen, "+ "+c.DisplayString()))
	}
	for _, m := range g.modifies {
		fmt.Fprintf(b, "│   %s\n", paint(color, colorCyan, fmt.Sprintf("~ %s -> %s", m.Remote.DisplayString(), m.Local.DisplayString())))
	}
	for _, c := range g.removes {
		fmt.Fprintf(b, "│   %s\n", paint(color, colorRed, "- "+c.DisplayString()))
	}
	for _, c := range g.remoteOnly {
		fmt.Fprintf(b, "│   %s\n", paint(color, colorDim, "* "+c.DisplayString()+" (remote-only)"))
	}
}
