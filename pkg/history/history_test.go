package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHunksShiftLine(t *testing.T) {
	hunks := Hunks{
		{OldStart: 3, OldLines: 0, NewStart: 3, NewLines: 2}, // insert 2 lines before old line 3
		{OldStart: 10, OldLines: 4, NewStart: 12, NewLines: 1},
	}

	tests := []struct {
		name string
		line int
		want int
	}{
		{"before first hunk", 2, 2},
		{"at insertion point", 3, 5},
		{"between hunks", 7, 9},
		{"start of replaced range", 10, 12},
		{"inside replaced range clamps", 12, 12},
		{"after last hunk", 20, 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hunks.ShiftLine(tt.line))
		})
	}

	assert.Equal(t, -1, hunks.Delta())
	assert.Equal(t, 7, Hunks(nil).ShiftLine(7))
}

func TestHunksShiftLine_PureDeletion(t *testing.T) {
	hunks := Hunks{{OldStart: 5, OldLines: 3, NewStart: 5, NewLines: 0}}
	assert.Equal(t, 5, hunks.ShiftLine(6))
	assert.Equal(t, 5, hunks.ShiftLine(8))
	assert.Equal(t, 4, hunks.ShiftLine(4))
}

func TestFileChangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		change  FileChange
		wantErr bool
	}{
		{"added", FileChange{Kind: Added, NewPath: "a.go"}, false},
		{"added without path", FileChange{Kind: Added}, true},
		{"modified", FileChange{Kind: Modified, OldPath: "a.go", NewPath: "a.go"}, false},
		{"deleted", FileChange{Kind: Deleted, OldPath: "a.go"}, false},
		{"deleted with new path", FileChange{Kind: Deleted, OldPath: "a.go", NewPath: "b.go"}, true},
		{"renamed", FileChange{Kind: Renamed, OldPath: "a.go", NewPath: "b.go"}, false},
		{"copied missing source", FileChange{Kind: Copied, NewPath: "b.go"}, true},
		{"unknown kind", FileChange{NewPath: "a.go"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileChangePath(t *testing.T) {
	assert.Equal(t, "b.go", FileChange{OldPath: "a.go", NewPath: "b.go", Kind: Renamed}.Path())
	assert.Equal(t, "a.go", FileChange{OldPath: "a.go", Kind: Deleted}.Path())
}

func TestCommitHelpers(t *testing.T) {
	zone := time.FixedZone("UTC+5:30", 5*3600+1800)
	c := &Commit{
		Hash:    "0123456789abcdef",
		Parents: []string{"p1", "p2"},
		When:    time.Date(2024, 3, 1, 10, 0, 0, 0, zone),
		Message: "  fix parser\n\nlonger body\n",
	}

	assert.Equal(t, "01234567", c.ShortHash())
	assert.Equal(t, "fix parser", c.Subject())
	assert.True(t, c.IsMerge())

	_, offset := c.When.Zone()
	assert.Equal(t, 5*3600+1800, offset)
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "renamed", Renamed.String())
	assert.Equal(t, "threshold_breach", ThresholdBreach.String())
	assert.Equal(t, "function", FunctionEntity.String())
	assert.Equal(t, "identity_ambiguity", IdentityAmbiguity.String())
	assert.Contains(t, ChangeKind(42).String(), "42")

	text, err := Outlier.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "outlier", string(text))
}

func TestBytesContent(t *testing.T) {
	a := Bytes([]byte("package main\n"))
	b := Bytes([]byte("package main\n"))
	c := Bytes([]byte("package other\n"))

	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Len(t, a.ID(), 64)

	data, err := a.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(nil))
	assert.Equal(t, 1, CountLines([]byte("x")))
	assert.Equal(t, 2, CountLines([]byte("x\ny\n")))
	assert.Equal(t, 3, CountLines([]byte("x\ny\nz")))
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("object not found")
	readErr := &RepositoryReadError{Commit: "abcdef0123", Err: cause}
	assert.ErrorIs(t, readErr, ErrRepositoryRead)
	assert.ErrorIs(t, readErr, cause)
	assert.Contains(t, readErr.Error(), "abcdef01")

	wrapped := fmt.Errorf("walk: %w", readErr)
	var target *RepositoryReadError
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, "abcdef0123", target.Commit)

	order := &OrderingViolationError{Commit: "c1", Reason: "seen twice"}
	assert.ErrorIs(t, order, ErrOrderingViolation)

	analysis := &AnalysisError{Path: "a.go", Err: fmt.Errorf("%w: bad syntax", ErrParse)}
	assert.ErrorIs(t, analysis, ErrParse)
}

func TestSliceSource(t *testing.T) {
	src := SliceSource{{Hash: "a"}, {Hash: "b"}, {Hash: "c"}}

	var seen []string
	err := src.ForEach(context.Background(), func(c *Commit) error {
		seen = append(seen, c.Hash)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	stop := errors.New("stop")
	seen = nil
	err = src.ForEach(context.Background(), func(c *Commit) error {
		seen = append(seen, c.Hash)
		if c.Hash == "b" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a", "b"}, seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = src.ForEach(ctx, func(*Commit) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
