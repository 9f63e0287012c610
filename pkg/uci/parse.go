package uci

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// ParseAuto detects the on-device text format and dispatches to the
// matching parser. Detection is heuristic: the presence of a `config `
// section header or a leading `\toption ` token selects show form;
// otherwise export form is assumed. Whitespace-only input yields an empty
// sequence.
func ParseAuto(pkg, text string) ([]Command, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if looksLikeShowForm(text) {
		return ParseShow(pkg, text)
	}
	return ParseExport(pkg, text)
}

func looksLikeShowForm(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " "), "config ") {
			return true
		}
		if strings.HasPrefix(line, "\toption ") || strings.HasPrefix(line, "\tlist ") {
			return true
		}
	}
	return false
}

// ParseExport parses the `uci export` flat assignment form:
//
//	package.section='section_type'
//	package.section.option='value'
//
// Quotes may be single, double, or absent; '#' starts a comment; blank
// lines are ignored. Each non-blank line emits one `set` Command.
func ParseExport(pkg, text string) ([]Command, error) {
	var cmds []Command
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("uci: export parse error at %s line %d: missing '='", pkg, lineNum)
		}
		path := strings.TrimSpace(line[:eq])
		value := unquote(strings.TrimSpace(line[eq+1:]))
		cmds = append(cmds, NewSet(path, value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cmds, nil
}

// ParseShow parses the `uci show` block-structured form:
//
//	config <section_type> '<name>'
//		option <option_name> '<value>'
//		list   <list_name>   '<value>'
//
// Anonymous section headers (no quoted name) are assigned generated
// indices in appearance order within their type: `@<type>[<i>]`.
func ParseShow(pkg, text string) ([]Command, error) {
	var cmds []Command
	typeIndex := make(map[string]int)
	currentSection := ""

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNum := 0
	for scanner.Scan() {
		raw := scanner.Text()
		lineNum++
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "config "):
			fields := splitShowLine(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("uci: show parse error at %s line %d: malformed config line", pkg, lineNum)
			}
			sectionType := fields[1]
			var name string
			if len(fields) >= 3 {
				name = fields[2]
			} else {
				idx := typeIndex[sectionType]
				typeIndex[sectionType] = idx + 1
				name = fmt.Sprintf("@%s[%d]", sectionType, idx)
			}
			currentSection = name
			cmds = append(cmds, NewSet(fmt.Sprintf("%s.%s", pkg, name), sectionType))
		case strings.HasPrefix(line, "option "):
			fields := splitShowLine(line)
			if len(fields) < 3 || currentSection == "" {
				return nil, fmt.Errorf("uci: show parse error at %s line %d: malformed option line", pkg, lineNum)
			}
			cmds = append(cmds, NewSet(fmt.Sprintf("%s.%s.%s", pkg, currentSection, fields[1]), fields[2]))
		case strings.HasPrefix(line, "list "):
			fields := splitShowLine(line)
			if len(fields) < 3 || currentSection == "" {
				return nil, fmt.Errorf("uci: show parse error at %s line %d: malformed list line", pkg, lineNum)
			}
			cmds = append(cmds, NewAddList(fmt.Sprintf("%s.%s.%s", pkg, currentSection, fields[1]), fields[2]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cmds, nil
}

// splitShowLine tokenizes a show-form line into at most 3 fields: keyword,
// name, quoted-value. The value/name may be single- or double-quoted.
func splitShowLine(line string) []string {
	var fields []string
	i := 0
	n := len(line)
	for i < n {
		for i < n && line[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}
		if line[i] == '\'' || line[i] == '"' {
			quote := line[i]
			j := i + 1
			for j < n && line[j] != quote {
				j++
			}
			fields = append(fields, line[i+1:j])
			i = j + 1
		} else {
			j := i
			for j < n && line[j] != ' ' {
				j++
			}
			fields = append(fields, line[i:j])
			i = j
		}
	}
	return fields
}

// unquote strips a single layer of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ValidateValue rejects values containing an embedded single quote, since
// the canonical stringifier (Command.String) performs no escaping (spec §9,
// open question 2 resolved conservatively: reject rather than corrupt the
// emitted command). Called wherever a document- or user-supplied string
// becomes a Command value — currently pkg/docs' tree builder.
func ValidateValue(path, value string) error {
	if strings.Contains(value, "'") {
		return fmt.Errorf("uci: value for %s contains an unescaped single quote: %s", path, strconv.Quote(value))
	}
	return nil
}
