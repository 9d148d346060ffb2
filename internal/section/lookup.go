package section

import "github.com/BurntSushi/toml"

// Lookup returns the value assigned to key inside section, as Merge would
// see it: every occurrence of the section is considered and the last
// assignment wins. Quoted values are unquoted using TOML rules; values
// that do not decode are returned as written, minus surrounding blanks.
func Lookup(text, section, key string) (string, bool) {
	s := scanLines(splitLines(text), section)

	raw, found := "", false
	for _, line := range s.body {
		if value, ok := assignment(line, key); ok {
			raw, found = value, true
		}
	}
	if !found {
		return "", false
	}
	return decodeValue(raw), true
}

// Sections lists section names in order of first appearance.
func Sections(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, line := range splitLines(text) {
		name, ok := HeaderName(line)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Occurrences counts the header lines for section in text.
func Occurrences(text, section string) int {
	n := 0
	for _, line := range splitLines(text) {
		if name, ok := HeaderName(line); ok && name == section {
			n++
		}
	}
	return n
}

func decodeValue(raw string) string {
	var doc map[string]any
	if _, err := toml.Decode("v = "+raw, &doc); err != nil {
		return raw
	}
	if s, ok := doc["v"].(string); ok {
		return s
	}
	return raw
}
