package cfgutil

import (
	"fmt"
	"strings"
)

// TrackFlag is a NAME=GENERATOR pair naming a generator to track.
type TrackFlag struct {
	Name      string
	Generator string
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (t *TrackFlag) MarshalFlag() (string, error) {
	return t.Name + "=" + t.Generator, nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface. Only the first
// '=' separates the name, since generators may contain '=' themselves.
func (t *TrackFlag) UnmarshalFlag(value string) error {
	name, generator, ok := strings.Cut(value, "=")
	name, generator = strings.TrimSpace(name), strings.TrimSpace(generator)
	if !ok || name == "" || generator == "" {
		return fmt.Errorf("invalid tracking entry %q, expected "+
			"NAME=GENERATOR", value)
	}
	t.Name, t.Generator = name, generator
	return nil
}
