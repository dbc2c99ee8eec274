// Package frontmatter parses and patches the YAML metadata block that
// prefaces component files.
//
// Parsing never fails: a file without a leading "---" delimiter, or with an
// unterminated block, is treated as having no metadata at all. A parsed Doc
// keeps the original bytes of every untouched line, so serialising a Doc
// whose fields were not modified reproduces the input byte for byte. Set
// rewrites a single field in place (or appends a new one just before the
// closing delimiter) and leaves everything else alone.
package frontmatter

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

var keyRe = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.-]*):(.*)$`)

// Field is one metadata entry in document order.
type Field struct {
	Key   string
	Value string

	// raw holds the field's original lines verbatim (terminators included);
	// nil for fields written through Set.
	raw []string
}

// Doc is a parsed component file: an ordered metadata block plus the body.
type Doc struct {
	prefix   string // blank lines before the opening delimiter
	open     string // opening delimiter line, verbatim
	closing  string // closing delimiter line, verbatim
	leading  []string
	fields   []Field
	body     string // verbatim remainder after the closing delimiter
	hasBlock bool
}

// Parse splits data into metadata and body. It never fails; malformed or
// absent blocks yield a Doc with no fields whose Body is the whole input.
func Parse(data []byte) *Doc {
	lines := splitLines(string(data))

	d := &Doc{}

	// A block starts only if the first non-empty line is exactly "---".
	i := 0
	for i < len(lines) && strings.TrimRight(lines[i], "\r\n") == "" {
		i++
	}
	if i >= len(lines) || strings.TrimRight(lines[i], "\r\n") != delimiter {
		d.body = string(data)
		return d
	}

	openIdx := i
	closeIdx := -1
	for j := openIdx + 1; j < len(lines); j++ {
		if strings.TrimRight(lines[j], "\r\n") == delimiter {
			closeIdx = j
			break
		}
	}
	if closeIdx < 0 {
		// Unterminated block: not an error, just "absent".
		d.body = string(data)
		return d
	}

	d.hasBlock = true
	d.prefix = strings.Join(lines[:openIdx], "")
	d.open = lines[openIdx]
	d.closing = lines[closeIdx]
	d.body = strings.Join(lines[closeIdx+1:], "")
	d.parseBlock(lines[openIdx+1 : closeIdx])
	return d
}

// parseBlock groups block lines into fields. A line starting a "key:" at
// column zero opens a field; every other line (indentation, blanks, comments,
// list items) belongs to the field above it.
func (d *Doc) parseBlock(lines []string) {
	cur := -1
	for _, line := range lines {
		m := keyRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if m == nil {
			if cur < 0 {
				d.leading = append(d.leading, line)
			} else {
				d.fields[cur].raw = append(d.fields[cur].raw, line)
			}
			continue
		}
		d.fields = append(d.fields, Field{Key: m[1], raw: []string{line}})
		cur = len(d.fields) - 1
	}
	for i := range d.fields {
		d.fields[i].Value = decodeValue(d.fields[i].raw)
	}
}

// HasBlock reports whether the file carried a well-formed metadata block.
func (d *Doc) HasBlock() bool { return d.hasBlock }

// Body returns everything after the closing delimiter, verbatim.
func (d *Doc) Body() string { return d.body }

// Fields returns the metadata entries in document order.
func (d *Doc) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Has reports whether key is present in the block.
func (d *Doc) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Get returns the decoded scalar value of key.
func (d *Doc) Get(key string) (string, bool) {
	for i := range d.fields {
		if d.fields[i].Key == key {
			return d.fields[i].Value, true
		}
	}
	return "", false
}

// Set replaces the value of key in place, or appends the key at the end of
// the block. A file without a block gains one enclosing only the new key.
func (d *Doc) Set(key, value string) {
	raw := encodeField(key, value)
	for i := range d.fields {
		if d.fields[i].Key == key {
			d.fields[i].Value = value
			d.fields[i].raw = raw
			return
		}
	}
	if !d.hasBlock {
		d.hasBlock = true
		d.open = delimiter + "\n"
		d.closing = delimiter + "\n"
	}
	d.fields = append(d.fields, Field{Key: key, Value: value, raw: raw})
}

// Bytes serialises the document. Untouched fields, delimiters, and the body
// are emitted from their original bytes.
func (d *Doc) Bytes() []byte {
	if !d.hasBlock {
		return []byte(d.body)
	}
	var b strings.Builder
	b.WriteString(d.prefix)
	b.WriteString(d.open)
	for _, l := range d.leading {
		b.WriteString(l)
	}
	for i := range d.fields {
		for _, l := range d.fields[i].raw {
			b.WriteString(l)
		}
	}
	b.WriteString(d.closing)
	b.WriteString(d.body)
	return []byte(b.String())
}

// decodeValue turns a field's raw lines into a scalar string. Block scalars
// (| and >) are joined per their style; nested structures and anything YAML
// refuses to parse degrade to the raw text rather than failing.
func decodeValue(raw []string) string {
	if len(raw) == 0 {
		return ""
	}
	m := keyRe.FindStringSubmatch(strings.TrimRight(raw[0], "\r\n"))
	if m == nil {
		return ""
	}
	first := strings.TrimSpace(m[2])
	rest := raw[1:]

	if isBlockScalar(first) {
		return decodeBlockScalar(first[0], rest)
	}

	if first == "" {
		if body := stripLines(rest); body != "" {
			// Nested list/map value: keep it as raw text.
			return body
		}
		return ""
	}

	var v any
	if err := yaml.Unmarshal([]byte(first), &v); err != nil {
		return first
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, int, int64, uint64, float64:
		return fmt.Sprintf("%v", t)
	default:
		// Flow sequences/maps stay raw.
		return first
	}
}

// isBlockScalar reports whether s is a YAML block scalar header (|, >, with
// optional chomping/indentation indicators).
func isBlockScalar(s string) bool {
	if s == "" || (s[0] != '|' && s[0] != '>') {
		return false
	}
	for _, r := range s[1:] {
		if r != '-' && r != '+' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// decodeBlockScalar joins the indented lines of a block scalar: literal (|)
// keeps line breaks, folded (>) joins with spaces. This is the minimal
// semantics component frontmatter needs; exotic indentation indicators are
// handled by stripping the common indent.
func decodeBlockScalar(style byte, lines []string) string {
	var content []string
	for _, l := range lines {
		content = append(content, strings.TrimRight(l, "\r\n"))
	}
	for len(content) > 0 && strings.TrimSpace(content[len(content)-1]) == "" {
		content = content[:len(content)-1]
	}
	if len(content) == 0 {
		return ""
	}

	indent := -1
	for _, l := range content {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " "))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent < 0 {
		indent = 0
	}
	for i, l := range content {
		if len(l) >= indent {
			content[i] = l[indent:]
		} else {
			content[i] = strings.TrimLeft(l, " ")
		}
	}

	if style == '|' {
		return strings.Join(content, "\n")
	}
	var parts []string
	for _, l := range content {
		if strings.TrimSpace(l) == "" {
			parts = append(parts, "\n")
			continue
		}
		parts = append(parts, l)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// encodeField renders a field written via Set. Multi-line values become a
// literal block scalar; single-line values lean on yaml.Marshal for quoting.
func encodeField(key, value string) []string {
	if strings.Contains(value, "\n") {
		out := []string{key + ": |-\n"}
		for _, l := range strings.Split(value, "\n") {
			out = append(out, "  "+l+"\n")
		}
		return out
	}
	return []string{key + ": " + encodeScalar(value) + "\n"}
}

func encodeScalar(v string) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return v
	}
	return strings.TrimRight(string(b), "\n")
}

// stripLines joins raw lines with their indentation and terminators removed.
func stripLines(lines []string) string {
	var out []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}

// splitLines splits s into lines, each retaining its terminator.
func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
