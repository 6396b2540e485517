package domain

import (
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultContentFields is the field priority used when none is configured.
var DefaultContentFields = []string{"text", "content"}

// ParsedLine is the result of attempting to parse one raw output line.
// It is either a StructuredLine or a LiteralLine.
type ParsedLine interface {
	parsedLine()
}

// StructuredLine is a line that parsed as a single JSON object.
type StructuredLine struct {
	Raw    string
	Record gjson.Result
}

// LiteralLine is a line that is not a JSON object.
type LiteralLine struct {
	Text string
}

func (StructuredLine) parsedLine() {}
func (LiteralLine) parsedLine()    {}

// ParseLine classifies a raw line. Trailing CR/LF is stripped first.
func ParseLine(raw string) ParsedLine {
	line := strings.TrimRight(raw, "\r\n")
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		return StructuredLine{Raw: line, Record: gjson.Parse(trimmed)}
	}
	return LiteralLine{Text: line}
}

// Normalizer turns raw tool output lines into an ordered fragment sequence.
// It is not safe for concurrent use; each execution owns one.
type Normalizer struct {
	fields []string
	next   int
}

// NewNormalizer creates a Normalizer that looks up content fields in the
// given priority order. Entries are gjson paths, so nested fields such as
// "item.text" are allowed. An empty list selects DefaultContentFields.
func NewNormalizer(fields []string) *Normalizer {
	cleaned := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			cleaned = append(cleaned, f)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultContentFields...)
	}
	return &Normalizer{fields: cleaned}
}

// Normalize converts one raw line into the next fragment. Every line
// yields exactly one fragment; lines that carry no recognized content
// field are passed through literally.
func (n *Normalizer) Normalize(raw string) TextFragment {
	frag := TextFragment{Seq: n.next, Text: n.extract(ParseLine(raw))}
	n.next++
	return frag
}

// Emitted returns how many fragments have been produced so far.
func (n *Normalizer) Emitted() int {
	return n.next
}

func (n *Normalizer) extract(line ParsedLine) string {
	switch l := line.(type) {
	case StructuredLine:
		for _, field := range n.fields {
			v := l.Record.Get(field)
			if v.Type == gjson.String {
				return v.Str
			}
		}
		return l.Raw
	case LiteralLine:
		return l.Text
	default:
		return ""
	}
}
