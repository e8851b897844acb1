package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and key thresholds.

func describeHistory() string {
	return `Replays a git repository's history and tracks the cyclomatic complexity of every file and function across commits, following renames and moves.

USE WHEN:
- Finding functions whose complexity has been creeping up
- Checking whether a refactoring actually reduced complexity
- Spotting commits that made a sudden jump in complexity
- Reviewing a release range (from/to) before shipping

INTERPRETING RESULTS:
- threshold_breach: a function rose above the ceiling (default 10) in that commit
- trend_reversal: a rising run turned into a decrease (or the reverse) after at least run_length observations
- outlier: a single commit changed the function far more than its recent history (z-score)
- growth: last minus first complexity; slope: least-squares change per observation
- Identity follows renames, so a function keeps its id when its file moves
- partial: true means the walk was cancelled and covers only the commits applied so far
- digest is stable for the same history and configuration; compare it across runs

METRICS RETURNED:
- Summary: commits, files, functions, open counts, events by kind
- Top breaches, top complexity, top growth function lists
- Signals: breach, reversal and outlier events with commit and old/new values
- Diagnostics: files the analyzer failed on, ambiguous moves
- With full=true: every file and function summary and all lifecycle events`
}

func describeTrace() string {
	return `Returns the complete complexity history of one file and the functions it contains, across renames.

USE WHEN:
- Explaining why a specific function is hard to maintain today
- Finding the commit that introduced a complexity spike
- Following a file back through its renames and moves
- Preparing context before refactoring a single module

INTERPRETING RESULTS:
- history lists one observation per commit that touched the file, oldest first
- path in each observation is the file's path at that commit
- A function that moved in from another file keeps its earlier observations
- Events are restricted to the file and the returned functions

METRICS RETURNED:
- File summary: lines, open functions, summed and max complexity
- Per observation: commit, ordinal, path, cyclomatic, lines, params
- Per function: first, last, peak, growth, slope, breaches, reversals, outliers`
}

func describeCommitLog() string {
	return `Lists recent commits across one or more repositories, grouped by day and repository.

USE WHEN:
- Writing a standup or weekly summary
- Reviewing what changed across several services
- Filtering one author's recent work

INTERPRETING RESULTS:
- Days are in ascending order; commits are oldest first within a repository
- Repositories that cannot be read are listed under skipped and do not fail the call
- authors match the author name or email, case-insensitively, by substring

METRICS RETURNED:
- Per day: date, repositories, commits
- Per commit: short hash, time, author, subject, body lines`
}
