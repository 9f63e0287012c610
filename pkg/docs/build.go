package docs

import (
	"fmt"
	"sort"

	"github.com/ucifleet/ucifleet/pkg/ucierr"
	"github.com/ucifleet/ucifleet/pkg/uci"
)

// BuildTree converts a merged, interpolated desired-state document into a
// uci.Tree, per the shape in spec §6.2: each top-level key is a UCI
// package; within it, each key is either a logical-group mapping (per
// SPEC_FULL.md §3), or the reserved "remote_policy" key.
func BuildTree(merged Document) (*uci.Tree, error) {
	tree := uci.NewTree()

	pkgNames := make([]string, 0, len(merged))
	for k := range merged {
		if reservedFleetKeys[k] {
			continue
		}
		pkgNames = append(pkgNames, k)
	}
	sort.Strings(pkgNames)

	for _, pkgName := range pkgNames {
		pkgVal, ok := asMap(merged[pkgName])
		if !ok {
			return nil, ucierr.New(ucierr.KindDocumentError, fmt.Sprintf("package %q: expected a mapping", pkgName))
		}
		pkg := tree.Package(pkgName)

		groupNames := make([]string, 0, len(pkgVal))
		for k := range pkgVal {
			groupNames = append(groupNames, k)
		}
		sort.Strings(groupNames)

		for _, groupName := range groupNames {
			if groupName == "remote_policy" {
				policy, err := buildPolicy(pkgVal[groupName])
				if err != nil {
					return nil, ucierr.Wrap(ucierr.KindDocumentError, fmt.Sprintf("package %q remote_policy", pkgName), err)
				}
				pkg.Policy = policy
				continue
			}

			mapping, ok := lookupGroup(pkgName, groupName)
			if !ok {
				return nil, ucierr.New(ucierr.KindDocumentError, fmt.Sprintf("package %q: unknown logical group %q", pkgName, groupName))
			}

			if err := buildGroup(pkg, mapping, pkgVal[groupName]); err != nil {
				return nil, ucierr.Wrap(ucierr.KindDocumentError, fmt.Sprintf("package %q group %q", pkgName, groupName), err)
			}
		}
	}

	return tree, nil
}

func buildGroup(pkg *uci.Package, mapping groupMapping, raw interface{}) error {
	if mapping.sequence {
		seq, ok := raw.([]interface{})
		if !ok {
			return ucierr.New(ucierr.KindDocumentError, "expected an ordered sequence")
		}
		for i, item := range seq {
			options, ok := asMap(item)
			if !ok {
				return ucierr.New(ucierr.KindDocumentError, fmt.Sprintf("element %d: expected a mapping", i))
			}
			name := fmt.Sprintf("@%s[%d]", mapping.sectionType, i)
			section := pkg.Section(name, mapping.sectionType)
			if err := populateSection(section, options); err != nil {
				return err
			}
		}
		return nil
	}

	groupMap, ok := asMap(raw)
	if !ok {
		return ucierr.New(ucierr.KindDocumentError, "expected a mapping")
	}

	names := make([]string, 0, len(groupMap))
	for k := range groupMap {
		names = append(names, k)
	}
	sort.Strings(names)

	for idx, key := range names {
		options, ok := asMap(groupMap[key])
		if !ok {
			return ucierr.New(ucierr.KindDocumentError, fmt.Sprintf("section %q: expected a mapping", key))
		}

		sectionName := key
		if mapping.anonymous {
			sectionName = fmt.Sprintf("@%s[%d]", mapping.sectionType, idx)
		}
		section := pkg.Section(sectionName, mapping.sectionType)
		if mapping.anonymous {
			if _, hasName := options["name"]; !hasName {
				section.SetScalar("name", key)
			}
		}
		if err := populateSection(section, options); err != nil {
			return err
		}
	}
	return nil
}

func populateSection(section *uci.Section, options Document) error {
	names := make([]string, 0, len(options))
	for k := range options {
		names = append(names, k)
	}
	sort.Strings(names)

	optionPath := func(opt string) string {
		return fmt.Sprintf("%s.%s", section.Name, opt)
	}

	for _, opt := range names {
		val := options[opt]
		switch v := val.(type) {
		case []interface{}:
			for _, elem := range v {
				str := uci.ScalarString(elem)
				if err := uci.ValidateValue(optionPath(opt), str); err != nil {
					return ucierr.Wrap(ucierr.KindDocumentError, "list option value", err)
				}
				section.AppendList(opt, str)
			}
		default:
			str := uci.ScalarString(v)
			if err := uci.ValidateValue(optionPath(opt), str); err != nil {
				return ucierr.Wrap(ucierr.KindDocumentError, "scalar option value", err)
			}
			section.SetScalar(opt, str)
		}
	}
	return nil
}

func buildPolicy(raw interface{}) (*uci.Policy, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, ucierr.New(ucierr.KindDocumentError, "expected a mapping")
	}

	policy := &uci.Policy{}
	if wl, ok := m["whitelist"].([]interface{}); ok {
		for _, p := range wl {
			policy.Whitelist = append(policy.Whitelist, fmt.Sprintf("%v", p))
		}
	}
	if as, ok := m["allowed_sections"].([]interface{}); ok {
		for _, p := range as {
			policy.AllowedSections = append(policy.AllowedSections, fmt.Sprintf("%v", p))
		}
	}
	if av, ok := m["allowed_values"].([]interface{}); ok {
		for _, p := range av {
			policy.AllowedValues = append(policy.AllowedValues, fmt.Sprintf("%v", p))
		}
	}
	return policy, nil
}
