package history

import "context"

// Source is a lazy, parent-before-child stream of commits. A Source can only
// be restarted from scratch.
type Source interface {
	ForEach(ctx context.Context, fn func(*Commit) error) error
}

// SliceSource replays an in-memory commit list.
type SliceSource []*Commit

// ForEach calls fn for every commit in order, stopping on the first error or
// when ctx is done.
func (s SliceSource) ForEach(ctx context.Context, fn func(*Commit) error) error {
	for _, c := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
