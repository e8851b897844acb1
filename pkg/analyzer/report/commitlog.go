package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ayanftw/commit-history/pkg/history"
	"github.com/fatih/color"
)

const commitIndent = 2

// RepoCommits is the commit list of one repository.
type RepoCommits struct {
	Repo    string
	Commits []*history.Commit
}

// LogEntry is one commit line of a commit log.
type LogEntry struct {
	Hash    string   `json:"hash" toon:"hash"`
	Time    string   `json:"time" toon:"time"`
	Author  string   `json:"author" toon:"author"`
	Subject string   `json:"subject" toon:"subject"`
	Body    []string `json:"body,omitempty" toon:"body,omitempty"`
}

// RepoDay is the commits one repository received on one day.
type RepoDay struct {
	Repo    string     `json:"repo" toon:"repo"`
	Commits []LogEntry `json:"commits" toon:"commits"`
}

// Day groups commits by repository.
type Day struct {
	Date  string    `json:"date" toon:"date"`
	Repos []RepoDay `json:"repos" toon:"repos"`
}

// CommitLog lists commits by author date, then by repository.
type CommitLog struct {
	Days []Day `json:"days" toon:"days"`
}

// NewCommitLog groups commits by their author date in loc. Days are
// ascending; repositories keep their input order and commits their order
// within each repository.
func NewCommitLog(repos []RepoCommits, loc *time.Location) *CommitLog {
	if loc == nil {
		loc = time.Local
	}
	days := make(map[string]map[string][]LogEntry)
	for _, rc := range repos {
		for _, c := range rc.Commits {
			when := c.When.In(loc)
			date := when.Format(time.DateOnly)
			if days[date] == nil {
				days[date] = make(map[string][]LogEntry)
			}
			days[date][rc.Repo] = append(days[date][rc.Repo], entry(c, when))
		}
	}

	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	log := &CommitLog{}
	for _, d := range dates {
		day := Day{Date: d}
		for _, rc := range repos {
			if entries := days[d][rc.Repo]; len(entries) > 0 {
				day.Repos = append(day.Repos, RepoDay{Repo: rc.Repo, Commits: entries})
			}
		}
		log.Days = append(log.Days, day)
	}
	return log
}

func entry(c *history.Commit, when time.Time) LogEntry {
	lines := strings.Split(strings.TrimRight(c.Message, "\n"), "\n")
	var body []string
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) != "" {
			body = append(body, l)
		}
	}
	return LogEntry{
		Hash:    c.ShortHash(),
		Time:    when.Format("15:04"),
		Author:  c.Author.Name,
		Subject: strings.TrimSpace(lines[0]),
		Body:    body,
	}
}

func (l *CommitLog) RenderData() any {
	return l
}

func (l *CommitLog) RenderText(w io.Writer, colored bool) error {
	box := color.New(color.FgGreen)
	repo := color.New(color.FgHiMagenta)
	if !colored {
		box.DisableColor()
		repo.DisableColor()
	}

	for _, d := range l.Days {
		bar := strings.Repeat("─", len(d.Date)+2)
		box.Fprintf(w, "┌%s┐\n", bar)
		box.Fprintf(w, "│ %s │\n", d.Date)
		box.Fprintf(w, "└%s┘\n\n", bar)

		for _, r := range d.Repos {
			repo.Fprintf(w, "%s: %d commits\n", r.Repo, len(r.Commits))
			for _, e := range r.Commits {
				fmt.Fprintf(w, "%s%s %s\n", strings.Repeat(" ", commitIndent), e.Time, e.Subject)
				for _, b := range e.Body {
					fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", commitIndent+5), b)
				}
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

func (l *CommitLog) RenderMarkdown(w io.Writer) error {
	for _, d := range l.Days {
		fmt.Fprintf(w, "## %s\n\n", d.Date)
		for _, r := range d.Repos {
			fmt.Fprintf(w, "### %s (%d commits)\n\n", r.Repo, len(r.Commits))
			for _, e := range r.Commits {
				fmt.Fprintf(w, "- `%s` %s\n", e.Time, e.Subject)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

// RenderCSV writes one row per commit.
func (l *CommitLog) RenderCSV(w *csv.Writer) error {
	if err := w.Write([]string{"date", "repo", "hash", "time", "author", "subject"}); err != nil {
		return err
	}
	for _, d := range l.Days {
		for _, r := range d.Repos {
			for _, e := range r.Commits {
				if err := w.Write([]string{d.Date, r.Repo, e.Hash, e.Time, e.Author, e.Subject}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
