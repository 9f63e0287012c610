package docs

import (
	"fmt"
	"os"

	"github.com/ucifleet/ucifleet/pkg/ucierr"
	"gopkg.in/yaml.v3"
)

// LoadDocument reads and decodes a single YAML or JSON document (JSON is a
// YAML subset, so one decoder handles both).
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ucierr.Wrap(ucierr.KindDocumentError, fmt.Sprintf("reading document %s", path), err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ucierr.Wrap(ucierr.KindDocumentError, fmt.Sprintf("parsing document %s", path), err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// MergeLayers loads and merges an ordered list of document paths. Later
// documents override earlier ones via deep-merge: mapping keys combine
// recursively, scalars overwrite, and sequences overwrite wholesale (an
// explicitly empty list clears a list rather than being ignored).
func MergeLayers(paths []string) (Document, error) {
	merged := Document{}
	for _, path := range paths {
		doc, err := LoadDocument(path)
		if err != nil {
			return nil, err
		}
		merged = mergeInto(merged, doc)
	}
	return merged, nil
}

// mergeInto merges overlay onto base and returns the combined mapping;
// base and overlay are not mutated in place beyond what's returned.
func mergeInto(base, overlay Document) Document {
	result := make(Document, len(base)+len(overlay))
	for k, v := range base {
		result[k] = v
	}
	for k, ov := range overlay {
		bv, exists := result[k]
		if !exists {
			result[k] = ov
			continue
		}
		result[k] = mergeValue(bv, ov)
	}
	return result
}

func mergeValue(base, overlay interface{}) interface{} {
	baseMap, baseIsMap := asMap(base)
	overlayMap, overlayIsMap := asMap(overlay)
	if baseIsMap && overlayIsMap {
		return map[string]interface{}(mergeInto(baseMap, overlayMap))
	}
	// Sequences and scalars: overlay always wins wholesale.
	return overlay
}

// asMap normalizes map[string]interface{} values produced by the YAML
// decoder (including nested Document-typed values) to Document.
func asMap(v interface{}) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]interface{}:
		return Document(m), true
	default:
		return nil, false
	}
}
