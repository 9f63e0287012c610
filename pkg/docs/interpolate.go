package docs

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/ucifleet/ucifleet/pkg/ucierr"
)

// interpolationPattern matches one `${...}` reference anywhere in a string
// value.
var interpolationPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate resolves every `${oc.env:NAME[,default]}` and
// `${dotted.path}` reference found in string values throughout tree,
// in place, after the full merge has been assembled (spec §4.8: applied
// once, to the resolved value tree). Cross-document references are
// evaluated against tree itself via a gojq path query.
func Interpolate(tree Document) error {
	_, err := interpolateValue(tree, tree)
	return err
}

func interpolateValue(v interface{}, root Document) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return interpolateString(val, root)
	case map[string]interface{}:
		for k, child := range val {
			resolved, err := interpolateValue(child, root)
			if err != nil {
				return nil, err
			}
			val[k] = resolved
		}
		return val, nil
	case Document:
		for k, child := range val {
			resolved, err := interpolateValue(child, root)
			if err != nil {
				return nil, err
			}
			val[k] = resolved
		}
		return val, nil
	case []interface{}:
		for i, child := range val {
			resolved, err := interpolateValue(child, root)
			if err != nil {
				return nil, err
			}
			val[i] = resolved
		}
		return val, nil
	default:
		return v, nil
	}
}

// interpolateString resolves all references in s. If s is a single
// whole-string reference, the resolved value's native type is preserved
// (e.g. an integer looked up via a dotted path stays an integer);
// otherwise references are stringified and substituted in place.
func interpolateString(s string, root Document) (interface{}, error) {
	matches := interpolationPattern.FindStringSubmatchIndex(s)
	if matches == nil {
		return s, nil
	}

	if matches[0] == 0 && matches[1] == len(s) {
		ref := s[matches[2]:matches[3]]
		return resolveReference(ref, root)
	}

	var firstErr error
	out := interpolationPattern.ReplaceAllStringFunc(s, func(m string) string {
		ref := interpolationPattern.FindStringSubmatch(m)[1]
		v, err := resolveReference(ref, root)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return fmt.Sprintf("%v", v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func resolveReference(ref string, root Document) (interface{}, error) {
	if rest, ok := strings.CutPrefix(ref, "oc.env:"); ok {
		name, def, hasDefault := strings.Cut(rest, ",")
		if v, ok := os.LookupEnv(name); ok {
			return v, nil
		}
		if hasDefault {
			return def, nil
		}
		return nil, ucierr.New(ucierr.KindDocumentError, fmt.Sprintf("environment variable %q is unset and no default was given", name))
	}

	return resolveDottedPath(ref, root)
}

// resolveDottedPath evaluates a jq path expression against the merged
// document tree using gojq, resolving cross-document references such as
// ${config_layers.base}.
func resolveDottedPath(path string, root Document) (interface{}, error) {
	query, err := gojq.Parse("." + path)
	if err != nil {
		return nil, ucierr.Wrap(ucierr.KindDocumentError, fmt.Sprintf("invalid reference path %q", path), err)
	}

	iter := query.Run(map[string]interface{}(root))
	v, ok := iter.Next()
	if !ok {
		return nil, ucierr.New(ucierr.KindDocumentError, fmt.Sprintf("reference %q resolved to nothing", path))
	}
	if err, isErr := v.(error); isErr {
		return nil, ucierr.Wrap(ucierr.KindDocumentError, fmt.Sprintf("resolving reference %q", path), err)
	}
	if v == nil {
		return nil, ucierr.New(ucierr.KindDocumentError, fmt.Sprintf("unresolved reference %q", path))
	}
	return v, nil
}
