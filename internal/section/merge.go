// Package section rewrites one named section of a flat, line-oriented
// configuration file so that it carries an up-to-date directive.
//
// The supported format is deliberately small: section headers of the form
// [name] and single-line directives of the form key = value. Anything else
// is carried through as opaque text. Merge is a pure function; reading and
// writing files is the caller's job (see package store).
package section

import "strings"

// Directive identifies the section, key and value that a merge installs.
type Directive struct {
	Section string
	Key     string
	Value   string
}

// Header returns the canonical header line for the directive's section.
func (d Directive) Header() string {
	return "[" + d.Section + "]"
}

// Line returns the directive line that Merge writes into the section.
func (d Directive) Line() string {
	return Line(d.Key, d.Value)
}

// cursor tracks where the scan is relative to the target section.
type cursor int

const (
	beforeTarget cursor = iota
	inTarget
	afterTarget
)

func (c cursor) String() string {
	switch c {
	case beforeTarget:
		return "before"
	case inTarget:
		return "in"
	case afterTarget:
		return "after"
	}
	return "unknown"
}

// scan is the result of a single forward pass over the input lines.
type scan struct {
	// header is the first target header line as written; empty when the
	// section was not found.
	header string
	before []string
	body   []string
	after  []string
}

// Merge returns existing rewritten so that d.Section appears exactly once
// and holds exactly one directive for d.Key, set to d.Value.
//
// A nil existing is treated as an absent file and produces a file holding
// only the section and its directive. Otherwise the lines are routed into
// three ordered buffers by a single forward pass:
//
//   - lines before the first target header go to before
//   - body lines of the target section go to the target body
//   - the next other header and everything after it go to after
//
// The first target header is written back as found, so a trailing comment
// on it survives. Repeated occurrences are folded into the target body in
// order: their header lines are dropped, keeping only a comment they carry
// as a standalone comment line. Stale directive lines for d.Key are removed
// from the target body and a fresh one is appended.
//
// The output ends with exactly one line terminator. Feeding the result back
// into Merge with the same directive returns it unchanged.
func Merge(existing *string, d Directive) string {
	if existing == nil {
		return d.Header() + "\n" + d.Line() + "\n"
	}

	newline := lineTerminator(*existing)
	s := scanLines(splitLines(*existing), d.Section)

	body := trimTrailingBlank(removeDirectives(s.body, d.Key))
	body = append(body, d.Line())
	before := trimTrailingBlank(s.before)
	after := trimLeadingBlank(s.after)

	header := s.header
	if header == "" {
		header = d.Header()
	}

	out := make([]string, 0, len(before)+len(body)+len(after)+1)
	out = append(out, before...)
	out = append(out, header)
	out = append(out, body...)
	out = append(out, after...)

	text := strings.TrimRight(strings.Join(out, newline), "\r\n")
	return text + newline
}

// scanLines runs the cursor state machine over lines.
func scanLines(lines []string, target string) scan {
	var s scan
	state := beforeTarget

	for _, line := range lines {
		name, isHeader := HeaderName(line)
		if isHeader && name == target {
			if s.header == "" {
				s.header = strings.TrimRight(line, " \t")
			} else if comment := headerComment(line); comment != "" {
				s.body = append(s.body, comment)
			}
			state = inTarget
			continue
		}

		switch state {
		case beforeTarget:
			s.before = append(s.before, line)
		case inTarget:
			if isHeader {
				state = afterTarget
				s.after = append(s.after, line)
				continue
			}
			s.body = append(s.body, line)
		case afterTarget:
			s.after = append(s.after, line)
		}
	}

	return s
}

// removeDirectives drops every line that sets key.
func removeDirectives(lines []string, key string) []string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if IsDirective(line, key) {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// splitLines splits text on line terminators. A trailing terminator does
// not produce an empty final line, and carriage returns are stripped.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// lineTerminator keeps CRLF files CRLF.
func lineTerminator(text string) string {
	if strings.Contains(text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func trimTrailingBlank(lines []string) []string {
	end := len(lines)
	for end > 0 && isBlank(lines[end-1]) {
		end--
	}
	return lines[:end]
}

func trimLeadingBlank(lines []string) []string {
	start := 0
	for start < len(lines) && isBlank(lines[start]) {
		start++
	}
	return lines[start:]
}
