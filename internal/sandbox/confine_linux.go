//go:build linux

package sandbox

import (
	"fmt"
	"os"

	landlock "github.com/landlock-lsm/go-landlock/landlock"

	"github.com/codefionn/toolgate/internal/logger"
)

// ConfineAvailable reports whether Confine can restrict processes on this
// platform. The running kernel may still lack Landlock.
const ConfineAvailable = true

// Confine restricts the calling process, and every process it starts
// afterwards, to the paths in c. It cannot be undone; call it only in a
// helper process that then runs the confined command.
func Confine(c Confinement) error {
	rules := landlockRules(c)

	var err error
	if c.BestEffort {
		err = landlock.V6.BestEffort().RestrictPaths(rules...)
	} else {
		err = landlock.V6.RestrictPaths(rules...)
	}
	if err != nil {
		return fmt.Errorf("landlock restriction failed: %w", err)
	}

	logger.Debug("sandbox: landlock applied: %d RO paths, %d RW paths", len(c.ReadOnly), len(c.ReadWrite))
	return nil
}

// landlockRules uses RODirs/RWDirs for directories and ROFiles/RWFiles for
// regular files, because Landlock rejects directory access rights on files.
func landlockRules(c Confinement) []landlock.Rule {
	rules := make([]landlock.Rule, 0, len(c.ReadOnly)+len(c.ReadWrite))
	for _, path := range c.ReadOnly {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			rules = append(rules, landlock.ROFiles(path))
		} else {
			rules = append(rules, landlock.RODirs(path))
		}
	}
	for _, path := range c.ReadWrite {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			rules = append(rules, landlock.RWFiles(path))
		} else {
			rules = append(rules, landlock.RWDirs(path))
		}
	}
	return rules
}
