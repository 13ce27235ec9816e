// Package conffile parses and renders flat key="value" system files such as
// /boot/loader.conf and /etc/rc.conf as an ordered sequence of typed lines.
package conffile

import (
	"bytes"
	"strings"
	"time"

	"netpilot/internal/types"
)

// HeaderPrefix starts every block of entries written by NetPilot.
const HeaderPrefix = "# NetPilot Configuration"

// LineKind classifies one line of a config file.
type LineKind int

const (
	LineBlank LineKind = iota
	LineComment
	LineManagedKey
	LineUnmanagedKey
	LineRaw // anything else, kept verbatim
)

// Line is one parsed line. Text is the original content without the line
// terminator; Key and Value are set for key lines only.
type Line struct {
	Kind  LineKind
	Text  string
	Key   string
	Value string
}

// Document is a parsed config file. The original bytes are kept so that
// rendering never rewrites user content.
type Document struct {
	raw   []byte
	lines []Line
	keys  map[string]int
}

// Parse builds a Document. A key line is managed when it sits inside a
// NetPilot block, which runs from a HeaderPrefix comment to the next blank
// line.
func Parse(data []byte) *Document {
	doc := &Document{
		raw:  bytes.Clone(data),
		keys: make(map[string]int),
	}

	text := string(data)
	if text == "" {
		return doc
	}
	text = strings.TrimSuffix(text, "\n")

	inBlock := false
	for _, raw := range strings.Split(text, "\n") {
		line := classify(raw, inBlock)
		switch line.Kind {
		case LineBlank:
			inBlock = false
		case LineComment:
			if strings.HasPrefix(strings.TrimSpace(raw), HeaderPrefix) {
				inBlock = true
			}
		case LineManagedKey, LineUnmanagedKey:
			if _, seen := doc.keys[line.Key]; !seen {
				doc.keys[line.Key] = len(doc.lines)
			}
		}
		doc.lines = append(doc.lines, line)
	}

	return doc
}

func classify(raw string, inBlock bool) Line {
	s := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
	switch {
	case s == "":
		return Line{Kind: LineBlank, Text: raw}
	case strings.HasPrefix(s, "#"):
		return Line{Kind: LineComment, Text: raw}
	}

	idx := strings.IndexByte(s, '=')
	if idx <= 0 {
		return Line{Kind: LineRaw, Text: raw}
	}
	key := strings.TrimSpace(s[:idx])
	if strings.ContainsAny(key, " \t") {
		return Line{Kind: LineRaw, Text: raw}
	}

	kind := LineUnmanagedKey
	if inBlock {
		kind = LineManagedKey
	}
	return Line{Kind: kind, Text: raw, Key: key, Value: parseValue(s[idx+1:])}
}

// parseValue strips quotes and trailing comments from a shell-style value.
func parseValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if q := v[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(v[1:], q); end >= 0 {
			return v[1 : end+1]
		}
		return strings.Trim(v, string(q))
	}
	if i := strings.IndexByte(v, '#'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// Lines returns a copy of the parsed lines.
func (d *Document) Lines() []Line {
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	return out
}

// Bytes returns the original content.
func (d *Document) Bytes() []byte {
	return bytes.Clone(d.raw)
}

// Has reports whether any key line defines key, whatever its value.
func (d *Document) Has(key string) bool {
	_, ok := d.keys[key]
	return ok
}

// Lookup returns the value of the first line defining key.
func (d *Document) Lookup(key string) (string, bool) {
	i, ok := d.keys[key]
	if !ok {
		return "", false
	}
	return d.lines[i].Value, true
}

// Managed returns the keys of all managed lines in file order.
func (d *Document) Managed() []string {
	var keys []string
	for _, l := range d.lines {
		if l.Kind == LineManagedKey {
			keys = append(keys, l.Key)
		}
	}
	return keys
}

// Append returns the original content followed by a NetPilot block holding
// entries. Each entry is preceded by its comment. The original bytes are
// kept as-is; only a missing final newline is added.
func (d *Document) Append(entries []types.ConfigEntry, at time.Time) []byte {
	var b bytes.Buffer
	b.Write(d.raw)
	if len(entries) == 0 {
		return b.Bytes()
	}

	if len(d.raw) > 0 {
		if d.raw[len(d.raw)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString(HeaderPrefix)
	b.WriteString(" - ")
	b.WriteString(at.Format("2006-01-02 15:04:05"))
	b.WriteByte('\n')
	for _, e := range entries {
		if e.Comment != "" {
			b.WriteString("# ")
			b.WriteString(e.Comment)
			b.WriteByte('\n')
		}
		b.WriteString(e.Line())
		b.WriteByte('\n')
	}
	return b.Bytes()
}
