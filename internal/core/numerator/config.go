// Package numerator defines the contract for human-readable sequential numbers.
package numerator

// Config identifies a sequence and how its values are rendered.
type Config struct {
	// Sequence names the counter, e.g. "orders".
	Sequence string

	// Scope isolates counters, typically the organization id.
	Scope string

	// PadWidth is the minimum number of digits (default 6).
	PadWidth int
}

// Key returns the storage key of the sequence.
func (c Config) Key() string {
	if c.Scope == "" {
		return c.Sequence
	}
	return c.Sequence + ":" + c.Scope
}

// OrderConfig returns the numbering of orders inside one organization.
func OrderConfig(orgID string, padWidth int) Config {
	if padWidth <= 0 {
		padWidth = 6
	}
	return Config{
		Sequence: "orders",
		Scope:    orgID,
		PadWidth: padWidth,
	}
}
