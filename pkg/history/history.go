// Package history defines the records that flow through the history
// correlation engine: commits read from a repository, the file changes they
// carry, the function metrics an analyzer produces for a file version, and
// the change events and diagnostics the engine emits.
package history

import (
	"fmt"
	"strings"
	"time"
)

// Signature identifies the author of a commit.
type Signature struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s Signature) String() string {
	if s.Email == "" {
		return s.Name
	}
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

// Commit is one commit as delivered by a repository reader. Commits are
// immutable once read.
type Commit struct {
	Hash     string    `json:"hash"`
	Parents  []string  `json:"parents,omitempty"`
	Author   Signature `json:"author"`
	When     time.Time `json:"when"` // keeps the author's zone offset
	Branches []string  `json:"branches,omitempty"`
	Message  string    `json:"message,omitempty"`

	Changes []FileChange `json:"-"`
}

// ShortHash returns the abbreviated commit hash.
func (c *Commit) ShortHash() string {
	if len(c.Hash) > 8 {
		return c.Hash[:8]
	}
	return c.Hash
}

// Subject returns the first line of the commit message.
func (c *Commit) Subject() string {
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return strings.TrimSpace(subject)
}

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// ChangeKind is the closed set of file change kinds.
type ChangeKind uint8

const (
	Added ChangeKind = iota + 1
	Modified
	Deleted
	Renamed
	Copied
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	case Copied:
		return "copied"
	default:
		return fmt.Sprintf("ChangeKind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FileChange is a single file modification within a commit.
type FileChange struct {
	OldPath string     `json:"old_path,omitempty"`
	NewPath string     `json:"new_path,omitempty"` // empty for deletions
	Kind    ChangeKind `json:"kind"`
	Hunks   Hunks      `json:"hunks,omitempty"`

	Before Content `json:"-"`
	After  Content `json:"-"`
}

// Path returns the path the change is best known by: the new path, or the
// old path for deletions.
func (c FileChange) Path() string {
	if c.NewPath != "" {
		return c.NewPath
	}
	return c.OldPath
}

// Validate checks that the paths present match the change kind.
func (c FileChange) Validate() error {
	switch c.Kind {
	case Added:
		if c.NewPath == "" {
			return fmt.Errorf("added change without new path")
		}
	case Modified:
		if c.NewPath == "" {
			return fmt.Errorf("modified change without path")
		}
	case Deleted:
		if c.OldPath == "" || c.NewPath != "" {
			return fmt.Errorf("deleted change must have only an old path: %q -> %q", c.OldPath, c.NewPath)
		}
	case Renamed, Copied:
		if c.OldPath == "" || c.NewPath == "" {
			return fmt.Errorf("%s change needs both paths: %q -> %q", c.Kind, c.OldPath, c.NewPath)
		}
	default:
		return fmt.Errorf("unknown change kind %d", uint8(c.Kind))
	}
	return nil
}

// Hunk is a contiguous range of changed lines. Line numbers are 1-based.
// A pure insertion has OldLines == 0 and OldStart set to the first old line
// after the insertion point; a pure deletion has NewLines == 0.
type Hunk struct {
	OldStart int `json:"old_start"`
	OldLines int `json:"old_lines"`
	NewStart int `json:"new_start"`
	NewLines int `json:"new_lines"`
}

// Delta is the net number of lines the hunk adds.
func (h Hunk) Delta() int {
	return h.NewLines - h.OldLines
}

// Hunks are the touched line ranges of one file change, ordered by OldStart.
type Hunks []Hunk

// ShiftLine maps a pre-image line number into the post-image. Lines after a
// hunk move by its delta; lines inside a replaced range map onto the
// replacement, clamped to its last line.
func (hs Hunks) ShiftLine(line int) int {
	shift := 0
	for _, h := range hs {
		end := h.OldStart + h.OldLines
		switch {
		case end <= line:
			shift += h.Delta()
		case h.OldStart <= line && h.OldLines > 0:
			offset := line - h.OldStart
			if h.NewLines == 0 {
				return h.NewStart
			}
			if offset >= h.NewLines {
				offset = h.NewLines - 1
			}
			return h.NewStart + offset
		default:
			return line + shift
		}
	}
	return line + shift
}

// Delta is the net number of lines added across all hunks.
func (hs Hunks) Delta() int {
	d := 0
	for _, h := range hs {
		d += h.Delta()
	}
	return d
}
