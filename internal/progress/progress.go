// Package progress reports history walks on the terminal.
package progress

import (
	"fmt"
	"io"

	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar that ticks once per applied commit.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	w     io.Writer
}

// NewTracker creates a progress bar with the given label and commit count.
// A total of -1 shows a spinner.
func NewTracker(w io.Writer, label string, total int) *Tracker {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionClearOnFinish(),
	}
	if total < 0 {
		opts = append(opts,
			progressbar.OptionSetWidth(20),
			progressbar.OptionSpinnerType(14),
		)
	} else {
		opts = append(opts,
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	return &Tracker{bar: progressbar.NewOptions(total, opts...), label: label, w: w}
}

// Commit advances the bar past c.
func (t *Tracker) Commit(c *history.Commit) {
	t.bar.Describe(fmt.Sprintf("%s %s", t.label, c.ShortHash()))
	_ = t.bar.Add(1)
}

// Count returns the number of commits seen.
func (t *Tracker) Count() int {
	return int(t.bar.State().CurrentNum)
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.w, "  %s error: %v\n", t.label, err)
}
