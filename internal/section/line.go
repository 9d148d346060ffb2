package section

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidDirective is returned by Directive.Validate.
var ErrInvalidDirective = errors.New("invalid directive")

// keyPattern matches a bare key or a dotted key made of bare segments.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// Validate reports whether d can be written as a single header line and a
// single directive line.
func (d Directive) Validate() error {
	if strings.TrimSpace(d.Section) == "" {
		return fmt.Errorf("%w: section name is empty", ErrInvalidDirective)
	}
	if strings.ContainsAny(d.Section, "[]#\r\n") {
		return fmt.Errorf("%w: section name %q contains '[', ']', '#' or a line break", ErrInvalidDirective, d.Section)
	}
	if d.Section != strings.TrimSpace(d.Section) {
		return fmt.Errorf("%w: section name %q has surrounding whitespace", ErrInvalidDirective, d.Section)
	}
	if strings.TrimSpace(d.Key) == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidDirective)
	}
	if strings.ContainsAny(d.Key, "\r\n") {
		return fmt.Errorf("%w: key %q contains a line break", ErrInvalidDirective, d.Key)
	}
	return nil
}

// Line renders key = value. The value is always written as a TOML basic
// string. A bare or dotted key is written as is; anything else is quoted.
func Line(key, value string) string {
	return keyToken(key) + " = " + quote(value)
}

// IsDirective reports whether line assigns key. The key must be followed by
// optional blanks and '=', so "rustc-wrapper" does not match
// "rustc-wrapper-extra = 1". Both the bare and the quoted spelling of the
// key are recognized.
func IsDirective(line, key string) bool {
	_, ok := assignment(line, key)
	return ok
}

// assignment returns the text after '=' when line assigns key.
func assignment(line, key string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	for _, token := range keySpellings(key) {
		rest, ok := strings.CutPrefix(trimmed, token)
		if !ok {
			continue
		}
		if value, ok := strings.CutPrefix(strings.TrimLeft(rest, " \t"), "="); ok {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

// headerComment returns the trailing # comment of a header line, or "".
func headerComment(line string) string {
	closing := strings.Index(line, "]")
	if closing < 0 {
		return ""
	}
	hash := strings.Index(line[closing:], "#")
	if hash < 0 {
		return ""
	}
	return strings.TrimSpace(line[closing+hash:])
}

// HeaderName reports whether line is a section header and returns the
// name between the brackets. A trailing # comment is ignored, as is
// whitespace inside the brackets. Array headers such as [[bin]] are
// headers too; their name keeps the inner brackets.
func HeaderName(line string) (string, bool) {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, "[") {
		return "", false
	}
	if closing := strings.Index(t, "]"); closing >= 0 {
		if hash := strings.Index(t[closing:], "#"); hash >= 0 {
			t = strings.TrimSpace(t[:closing+hash])
		}
	}
	if len(t) < 2 || !strings.HasSuffix(t, "]") {
		return "", false
	}
	return strings.TrimSpace(t[1 : len(t)-1]), true
}

// keySpellings lists the forms of key a directive line may use. A dotted
// key only matches as written: quoting it would name a different key.
func keySpellings(key string) []string {
	spellings := []string{key}
	if strings.Contains(key, ".") && keyPattern.MatchString(key) {
		return spellings
	}
	for _, token := range []string{keyToken(key), quote(key), "'" + key + "'"} {
		if !slices.Contains(spellings, token) {
			spellings = append(spellings, token)
		}
	}
	return spellings
}

func keyToken(key string) string {
	if keyPattern.MatchString(key) {
		return key
	}
	return quote(key)
}

// quote renders s as a TOML basic string.
func quote(s string) string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]string{"v": s}); err != nil {
		return strconv.Quote(s)
	}
	encoded := strings.TrimSpace(buf.String())
	if rest, ok := strings.CutPrefix(encoded, "v = "); ok {
		return rest
	}
	return strconv.Quote(s)
}
