package consts

import "time"

// File operation limits
const (
	// MaxLinesPerRead is the maximum number of lines that can be read from a file at once
	MaxLinesPerRead = 2000
)

// Shell limits
const (
	// MaxShellStreamBytes caps what is kept of a command's stdout and of its stderr
	MaxShellStreamBytes = 64 * 1024
	// DefaultShellTimeout applies when a call does not ask for one
	DefaultShellTimeout = 30 * time.Second
	// MaxShellTimeout is the longest timeout a call may ask for
	MaxShellTimeout = 5 * time.Minute
)
