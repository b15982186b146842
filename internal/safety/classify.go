package safety

// Classification is the combined verdict for one command line.
type Classification struct {
	Command  string    `json:"command"`
	Segments []Segment `json:"segments,omitempty"`
	// Err is nil when the command passed Validate.
	Err      error  `json:"-"`
	Mutating bool   `json:"mutating"`
	Reason   string `json:"reason,omitempty"`
}

// Valid reports whether the command passed validation.
func (c Classification) Valid() bool {
	return c.Err == nil
}

// Classify validates command against allowed and decides whether it
// mutates state. Mutation is computed even for invalid commands so callers
// can report both.
func Classify(command string, allowed []string) Classification {
	c := Classification{Command: command}
	c.Err = Validate(command, allowed)
	if segs, err := Split(command); err == nil {
		c.Segments = segs
	}
	c.Mutating, c.Reason = MutationReason(command)
	return c
}
