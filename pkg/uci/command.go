// Package uci implements the UCI configuration model: commands, the
// desired-state config tree, on-device text parsers, the whitelist policy,
// and the diff engine.
package uci

import (
	"fmt"
	"strconv"
	"strings"
)

// Action identifies the kind of mutation a Command represents.
type Action string

const (
	ActionSet     Action = "set"
	ActionAddList Action = "add_list"
	ActionDelList Action = "del_list"
	ActionDelete  Action = "delete"
)

// sensitiveOptions holds option names (last path segment, case-folded)
// whose values are masked by the renderer.
var sensitiveOptions = map[string]bool{
	"key":           true,
	"password":      true,
	"wpakey":        true,
	"sae_password":  true,
	"psk":           true,
	"secret":        true,
	"auth_secret":   true,
	"priv_passwd":   true,
	"auth_passwd":   true,
}

// Command is a single UCI mutation: action, dotted path, and an optional
// value. delete carries no value; del_list carries the value to remove.
type Command struct {
	Action Action
	Path   string
	Value  string
	HasValue bool
}

// NewSet builds a `set` command.
func NewSet(path, value string) Command {
	return Command{Action: ActionSet, Path: path, Value: value, HasValue: true}
}

// NewAddList builds an `add_list` command.
func NewAddList(path, value string) Command {
	return Command{Action: ActionAddList, Path: path, Value: value, HasValue: true}
}

// NewDelList builds a `del_list` command.
func NewDelList(path, value string) Command {
	return Command{Action: ActionDelList, Path: path, Value: value, HasValue: true}
}

// NewDelete builds a `delete` command.
func NewDelete(path string) Command {
	return Command{Action: ActionDelete, Path: path}
}

// Segments splits the dotted path into its components.
func (c Command) Segments() []string {
	return strings.Split(c.Path, ".")
}

// Package returns the first path segment.
func (c Command) Package() string {
	segs := c.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// IsSectionPath reports whether the path names a section (2 segments).
func (c Command) IsSectionPath() bool {
	return len(c.Segments()) == 2
}

// IsOptionPath reports whether the path names an option (3 segments).
func (c Command) IsOptionPath() bool {
	return len(c.Segments()) == 3
}

// OptionName returns the last path segment, for sensitive-field matching.
func (c Command) OptionName() string {
	segs := c.Segments()
	return segs[len(segs)-1]
}

// IsSensitive reports whether this command's option name is a secret field.
func (c Command) IsSensitive() bool {
	return sensitiveOptions[strings.ToLower(c.OptionName())]
}

// String renders the canonical shell form: `uci <action> <path>[='<value>']`.
func (c Command) String() string {
	switch c.Action {
	case ActionDelete:
		return fmt.Sprintf("uci delete %s", c.Path)
	default:
		return fmt.Sprintf("uci %s %s='%s'", c.Action, c.Path, c.Value)
	}
}

// DisplayString renders the canonical form with the value masked if this
// command targets a sensitive option. The stored Value is never mutated.
func (c Command) DisplayString() string {
	if c.Action == ActionDelete || !c.IsSensitive() {
		return c.String()
	}
	return fmt.Sprintf("uci %s %s='%s'", c.Action, c.Path, maskValue(c.Value))
}

// maskValue renders the first 3 characters of v followed by '*' padding to
// the original length; values of length <= 3 render as all '*'.
func maskValue(v string) string {
	if len(v) <= 3 {
		return strings.Repeat("*", len(v))
	}
	return v[:3] + strings.Repeat("*", len(v)-3)
}

// ScalarString converts a Go scalar to its UCI string form: booleans as
// "1"/"0", integers as decimal, strings verbatim.
func ScalarString(v interface{}) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "1"
		}
		return "0"
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// Render without a fractional part when the value is integral.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
