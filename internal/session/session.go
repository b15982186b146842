// Package session tracks what a tool caller has seen and approved during
// one session: which files were read (and their content fingerprint at the
// time), which files were modified, and which mutating commands the user
// approved. The sandbox, edit matcher and command classifier stay
// stateless; this is where per-session state lives.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/codefionn/toolgate/internal/logger"
)

// FileRead records a read of one file.
type FileRead struct {
	Fingerprint uint64    `json:"fingerprint"`
	Size        int       `json:"size"`
	ReadAt      time.Time `json:"read_at"`
}

// Session manages the state of one tool-calling session
type Session struct {
	ID                 string
	WorkingDir         string
	FilesRead          map[string]FileRead
	FilesModified      map[string]bool
	AuthorizedCommands []string // command prefixes the user approved

	mu        sync.RWMutex
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a new session
func NewSession(id, workingDir string) *Session {
	if id == "" {
		id = GenerateID()
	}
	return &Session{
		ID:                 id,
		WorkingDir:         workingDir,
		FilesRead:          make(map[string]FileRead),
		FilesModified:      make(map[string]bool),
		AuthorizedCommands: make([]string, 0),
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
}

// GenerateID creates a random session ID (hex, 12 chars).
func GenerateID() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		timestamp := time.Now().UnixNano()
		return fmt.Sprintf("sess-%d", timestamp)
	}
	return hex.EncodeToString(buf[:])
}

// Fingerprint hashes file content for staleness checks.
func Fingerprint(content string) uint64 {
	return xxhash.Sum64String(content)
}

// TrackFileRead tracks that a file was read with the given content
func (s *Session) TrackFileRead(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesRead[path] = FileRead{
		Fingerprint: Fingerprint(content),
		Size:        len(content),
		ReadAt:      time.Now(),
	}
	s.UpdatedAt = time.Now()
}

// WasFileRead checks if a file was read in this session
func (s *Session) WasFileRead(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.FilesRead[path]
	return ok
}

// IsStale reports whether current differs from the content last read or
// written through this session. Files never read are not stale.
func (s *Session) IsStale(path, current string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	read, ok := s.FilesRead[path]
	if !ok {
		return false
	}
	return read.Size != len(current) || read.Fingerprint != Fingerprint(current)
}

// TrackFileModified tracks that a file was modified. The written content
// becomes the new baseline for IsStale.
func (s *Session) TrackFileModified(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesModified[path] = true
	s.FilesRead[path] = FileRead{
		Fingerprint: Fingerprint(content),
		Size:        len(content),
		ReadAt:      time.Now(),
	}
	s.UpdatedAt = time.Now()
}

// GetModifiedFiles returns the sorted list of modified files
func (s *Session) GetModifiedFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]string, 0, len(s.FilesModified))
	for path := range s.FilesModified {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// AuthorizeCommand adds a command prefix to the authorized list for this session
func (s *Session) AuthorizeCommand(commandPrefix string) {
	commandPrefix = strings.TrimSpace(commandPrefix)
	if commandPrefix == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.AuthorizedCommands {
		if existing == commandPrefix {
			return
		}
	}

	s.AuthorizedCommands = append(s.AuthorizedCommands, commandPrefix)
	s.UpdatedAt = time.Now()
	logger.Debug("session %s: authorized command prefix %q", s.ID, commandPrefix)
}

// IsCommandAuthorized checks whether command starts with an authorized
// prefix. The prefix must end at a word boundary: "git commit" covers
// "git commit -m x" but not "git commit-tree".
func (s *Session) IsCommandAuthorized(command string) bool {
	command = strings.TrimSpace(command)
	if command == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, prefix := range s.AuthorizedCommands {
		if command == prefix {
			return true
		}
		if strings.HasPrefix(command, prefix) {
			next := command[len(prefix)]
			if next == ' ' || next == '\t' {
				return true
			}
		}
	}

	return false
}

// GetAuthorizedCommands returns a list of all authorized command prefixes
func (s *Session) GetAuthorizedCommands() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	commands := make([]string, len(s.AuthorizedCommands))
	copy(commands, s.AuthorizedCommands)
	return commands
}

// Clear clears the session but keeps working directory
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesRead = make(map[string]FileRead)
	s.FilesModified = make(map[string]bool)
	s.AuthorizedCommands = make([]string, 0)
	s.UpdatedAt = time.Now()
}
