package cfgutil

import "github.com/pandora-prime/bitcoin-pro/resolver"

// ModeFlag embeds a resolver.Mode and implements the flags.Marshaler and
// Unmarshaler interfaces so it can be used as a config struct field.
type ModeFlag struct {
	resolver.Mode
}

// NewModeFlag creates a ModeFlag with a default mode.
func NewModeFlag(defaultValue resolver.Mode) *ModeFlag {
	return &ModeFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (m *ModeFlag) MarshalFlag() (string, error) {
	return m.Mode.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (m *ModeFlag) UnmarshalFlag(value string) error {
	mode, err := resolver.ParseMode(value)
	if err != nil {
		return err
	}
	m.Mode = mode
	return nil
}
