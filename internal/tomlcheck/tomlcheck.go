// Package tomlcheck validates merged configuration text with a real TOML
// decoder, so a merge that produces an unparsable file can be caught
// before it is written.
package tomlcheck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalid is returned when text does not decode as TOML.
var ErrInvalid = errors.New("invalid TOML")

// Validate decodes text and reports the first syntax error.
func Validate(text string) error {
	var doc map[string]any
	if _, err := toml.Decode(text, &doc); err != nil {
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return fmt.Errorf("%w: line %d: %s", ErrInvalid, perr.Position.Line, perr.Message)
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Value decodes text and returns the value at section.key. Dotted section
// names and dotted keys are walked as nested tables, the way a TOML
// consumer sees them.
func Value(text, section, key string) (any, bool, error) {
	var doc map[string]any
	if _, err := toml.Decode(text, &doc); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	path := strings.Split(section, ".")
	keyParts := strings.Split(key, ".")
	path = append(path, keyParts[:len(keyParts)-1]...)

	table := doc
	for _, part := range path {
		next, ok := table[strings.Trim(part, `"`)].(map[string]any)
		if !ok {
			return nil, false, nil
		}
		table = next
	}

	v, ok := table[keyParts[len(keyParts)-1]]
	return v, ok, nil
}
