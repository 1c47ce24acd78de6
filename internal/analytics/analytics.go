// Package analytics computes derived statistics over commit and repository
// collections. Everything here is a pure function of its inputs: no network
// access, no caching, no shared state. Consumers recompute snapshots whenever
// the underlying collection or the active filter changes.
package analytics

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/gitboard/gitboard/internal/githubapi"
)

// CommitClass is the derived type tag of a commit message.
type CommitClass string

const (
	ClassFeat     CommitClass = "feat"
	ClassFix      CommitClass = "fix"
	ClassDocs     CommitClass = "docs"
	ClassStyle    CommitClass = "style"
	ClassRefactor CommitClass = "refactor"
	ClassTest     CommitClass = "test"
	ClassChore    CommitClass = "chore"
	ClassOther    CommitClass = "other"
)

// classPriority is the prefix-match order. First match wins, so "fixes" and
// "fix:" both land on fix.
var classPriority = []CommitClass{
	ClassFeat, ClassFix, ClassDocs, ClassStyle, ClassRefactor, ClassTest, ClassChore,
}

// Classify derives a commit's class from the lowercased, trimmed first line
// of its message. Matching is plain prefix matching, not conventional-commit
// grammar.
func Classify(message string) CommitClass {
	firstLine := message
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	firstLine = strings.ToLower(strings.TrimSpace(firstLine))

	for _, class := range classPriority {
		if strings.HasPrefix(firstLine, string(class)) {
			return class
		}
	}
	return ClassOther
}

// Window is a relative time window over commit author timestamps.
type Window string

const (
	WindowHour  Window = "hour"
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowYear  Window = "year"
	WindowAll   Window = "all"
)

// windowDurations are fixed approximations, deliberately not calendar-exact.
var windowDurations = map[Window]time.Duration{
	WindowHour:  time.Hour,
	WindowDay:   24 * time.Hour,
	WindowWeek:  168 * time.Hour,
	WindowMonth: 720 * time.Hour,
	WindowYear:  8760 * time.Hour,
}

// Valid reports whether w is a recognized window tag.
func (w Window) Valid() bool {
	if w == WindowAll {
		return true
	}
	_, ok := windowDurations[w]
	return ok
}

// SortKey selects a commit ordering.
type SortKey string

const (
	SortDateDesc      SortKey = "date"
	SortAuthorAsc     SortKey = "author"
	SortAdditionsDesc SortKey = "additions"
	SortDeletionsDesc SortKey = "deletions"
	SortChangesDesc   SortKey = "changes"
)

// FilterSpec selects a subset and ordering of a commit collection. Zero
// values mean "no filtering": empty window is treated as all, empty author as
// all, empty search as no search.
type FilterSpec struct {
	Window Window
	Search string
	Author string
	Sort   SortKey
}

// FilterWindow keeps commits whose author timestamp falls within
// [now-duration, now]. WindowAll and unknown windows pass everything.
func FilterWindow(commits []githubapi.Commit, window Window, now time.Time) []githubapi.Commit {
	duration, ok := windowDurations[window]
	if !ok {
		return commits
	}

	cutoff := now.Add(-duration)
	kept := make([]githubapi.Commit, 0, len(commits))
	for _, commit := range commits {
		at := commit.AuthoredAt
		if !at.Before(cutoff) && !at.After(now) {
			kept = append(kept, commit)
		}
	}
	return kept
}

// FilterSearch keeps commits whose message, author name, author login, or
// SHA contains the term, case-insensitively. An empty term keeps everything.
func FilterSearch(commits []githubapi.Commit, term string) []githubapi.Commit {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return commits
	}

	kept := make([]githubapi.Commit, 0, len(commits))
	for _, commit := range commits {
		if strings.Contains(strings.ToLower(commit.Message), needle) ||
			strings.Contains(strings.ToLower(commit.AuthorName), needle) ||
			strings.Contains(strings.ToLower(commit.AuthorLogin), needle) ||
			strings.Contains(strings.ToLower(commit.SHA), needle) {
			kept = append(kept, commit)
		}
	}
	return kept
}

// FilterAuthor keeps commits whose author display name matches exactly.
// Empty or "all" keeps everything.
func FilterAuthor(commits []githubapi.Commit, author string) []githubapi.Commit {
	if author == "" || author == "all" {
		return commits
	}

	kept := make([]githubapi.Commit, 0, len(commits))
	for _, commit := range commits {
		if commit.AuthorName == author {
			kept = append(kept, commit)
		}
	}
	return kept
}

// SortCommits returns a sorted copy. The sort is stable: ties keep the prior
// relative order. Unknown keys sort by date descending.
func SortCommits(commits []githubapi.Commit, key SortKey) []githubapi.Commit {
	sorted := make([]githubapi.Commit, len(commits))
	copy(sorted, commits)

	var less func(a, b githubapi.Commit) bool
	switch key {
	case SortAuthorAsc:
		// Unicode collation under the neutral locale, so accented author
		// names order next to their base letters instead of by byte value.
		authorOrder := collate.New(language.Und, collate.IgnoreCase)
		less = func(a, b githubapi.Commit) bool {
			return authorOrder.CompareString(a.AuthorName, b.AuthorName) < 0
		}
	case SortAdditionsDesc:
		less = func(a, b githubapi.Commit) bool { return additions(a) > additions(b) }
	case SortDeletionsDesc:
		less = func(a, b githubapi.Commit) bool { return deletions(a) > deletions(b) }
	case SortChangesDesc:
		less = func(a, b githubapi.Commit) bool { return totalChanges(a) > totalChanges(b) }
	default:
		less = func(a, b githubapi.Commit) bool { return a.AuthoredAt.After(b.AuthoredAt) }
	}

	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	return sorted
}

func additions(c githubapi.Commit) int {
	if c.Stats == nil {
		return 0
	}
	return c.Stats.Additions
}

func deletions(c githubapi.Commit) int {
	if c.Stats == nil {
		return 0
	}
	return c.Stats.Deletions
}

func totalChanges(c githubapi.Commit) int {
	if c.Stats == nil {
		return 0
	}
	if c.Stats.Total > 0 {
		return c.Stats.Total
	}
	return c.Stats.Additions + c.Stats.Deletions
}

// AuthorStat is one author's rollup.
type AuthorStat struct {
	Author    string `json:"author"`
	Commits   int    `json:"commits"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// AuthorStats groups commits by author display name, in first-encounter
// order. Commits with an empty author name group under "unknown".
func AuthorStats(commits []githubapi.Commit) []AuthorStat {
	index := make(map[string]int)
	stats := make([]AuthorStat, 0)
	for _, commit := range commits {
		author := commit.AuthorName
		if author == "" {
			author = "unknown"
		}
		i, seen := index[author]
		if !seen {
			i = len(stats)
			index[author] = i
			stats = append(stats, AuthorStat{Author: author})
		}
		stats[i].Commits++
		stats[i].Additions += additions(commit)
		stats[i].Deletions += deletions(commit)
	}
	return stats
}

// HourHistogram buckets commits by the local hour of their author timestamp.
// All 24 buckets are present, zero-filled.
func HourHistogram(commits []githubapi.Commit) [24]int {
	var buckets [24]int
	for _, commit := range commits {
		buckets[commit.AuthoredAt.Local().Hour()]++
	}
	return buckets
}

// WeekdayHistogram buckets commits by local weekday name, Sunday through
// Saturday, zero-filled.
func WeekdayHistogram(commits []githubapi.Commit) map[string]int {
	buckets := make(map[string]int, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		buckets[day.String()] = 0
	}
	for _, commit := range commits {
		buckets[commit.AuthoredAt.Local().Weekday().String()]++
	}
	return buckets
}

// DailyActivity is one calendar date's totals.
type DailyActivity struct {
	Date      string `json:"date"`
	Commits   int    `json:"commits"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// DailySeries groups commits by local calendar date, keeps the 30 most
// recent distinct dates, and returns them sorted ascending.
func DailySeries(commits []githubapi.Commit) []DailyActivity {
	byDate := make(map[string]*DailyActivity)
	for _, commit := range commits {
		date := commit.AuthoredAt.Local().Format("2006-01-02")
		entry, ok := byDate[date]
		if !ok {
			entry = &DailyActivity{Date: date}
			byDate[date] = entry
		}
		entry.Commits++
		entry.Additions += additions(commit)
		entry.Deletions += deletions(commit)
	}

	series := make([]DailyActivity, 0, len(byDate))
	for _, entry := range byDate {
		series = append(series, *entry)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	if len(series) > 30 {
		series = series[len(series)-30:]
	}
	return series
}

// Summary holds the scalar rollups of a filtered commit set. All fields are
// zero-safe: an empty input yields zeros, never NaN.
type Summary struct {
	TotalCommits     int     `json:"total_commits"`
	TotalAuthors     int     `json:"total_authors"`
	TotalAdditions   int     `json:"total_additions"`
	TotalDeletions   int     `json:"total_deletions"`
	AvgCommitsPerDay float64 `json:"avg_commits_per_day"`
	MostActiveAuthor string  `json:"most_active_author"`
	MostActiveDay    string  `json:"most_active_day"`
}

// Summarize computes the scalar rollups. The commits-per-day average divides
// by the inclusive span of calendar days between the earliest and latest
// commit in the set, never by the requested window.
func Summarize(commits []githubapi.Commit) Summary {
	if len(commits) == 0 {
		return Summary{}
	}

	summary := Summary{TotalCommits: len(commits)}

	earliest, latest := commits[0].AuthoredAt, commits[0].AuthoredAt
	for _, commit := range commits {
		summary.TotalAdditions += additions(commit)
		summary.TotalDeletions += deletions(commit)
		if commit.AuthoredAt.Before(earliest) {
			earliest = commit.AuthoredAt
		}
		if commit.AuthoredAt.After(latest) {
			latest = commit.AuthoredAt
		}
	}

	authors := AuthorStats(commits)
	summary.TotalAuthors = len(authors)
	bestCommits := 0
	for _, stat := range authors {
		if stat.Commits > bestCommits {
			bestCommits = stat.Commits
			summary.MostActiveAuthor = stat.Author
		}
	}

	summary.MostActiveDay = mostActiveWeekday(commits)

	spanDays := inclusiveDaySpan(earliest, latest)
	summary.AvgCommitsPerDay = float64(summary.TotalCommits) / float64(spanDays)
	return summary
}

// mostActiveWeekday scans commits in input order so ties resolve to the
// first-encountered weekday.
func mostActiveWeekday(commits []githubapi.Commit) string {
	counts := make(map[string]int, 7)
	var order []string
	for _, commit := range commits {
		day := commit.AuthoredAt.Local().Weekday().String()
		if counts[day] == 0 {
			order = append(order, day)
		}
		counts[day]++
	}

	best := ""
	for _, day := range order {
		if best == "" || counts[day] > counts[best] {
			best = day
		}
	}
	return best
}

// inclusiveDaySpan counts distinct local calendar days between two instants,
// inclusive of both endpoints. Same-day input yields 1.
func inclusiveDaySpan(earliest, latest time.Time) int {
	start := truncateToDay(earliest.Local())
	end := truncateToDay(latest.Local())
	span := int(end.Sub(start).Hours()/24) + 1
	if span < 1 {
		return 1
	}
	return span
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Snapshot is the full derived view of a filtered commit collection.
type Snapshot struct {
	Commits   []githubapi.Commit  `json:"commits"`
	Summary   Summary             `json:"summary"`
	Authors   []AuthorStat        `json:"authors"`
	ByClass   map[CommitClass]int `json:"by_class"`
	ByHour    [24]int             `json:"by_hour"`
	ByWeekday map[string]int      `json:"by_weekday"`
	Daily     []DailyActivity     `json:"daily"`
}

// Compute applies the filter spec to the collection and derives the full
// snapshot. The input slice is never mutated.
func Compute(commits []githubapi.Commit, spec FilterSpec, now time.Time) Snapshot {
	filtered := FilterWindow(commits, spec.Window, now)
	filtered = FilterSearch(filtered, spec.Search)
	filtered = FilterAuthor(filtered, spec.Author)
	filtered = SortCommits(filtered, spec.Sort)

	byClass := make(map[CommitClass]int)
	for _, commit := range filtered {
		byClass[Classify(commit.Message)]++
	}

	return Snapshot{
		Commits:   filtered,
		Summary:   Summarize(filtered),
		Authors:   AuthorStats(filtered),
		ByClass:   byClass,
		ByHour:    HourHistogram(filtered),
		ByWeekday: WeekdayHistogram(filtered),
		Daily:     DailySeries(filtered),
	}
}

// RepoSummary holds portfolio-level rollups over a repository collection.
type RepoSummary struct {
	TotalRepos     int              `json:"total_repos"`
	TotalStars     int              `json:"total_stars"`
	TotalForks     int              `json:"total_forks"`
	OriginalRepos  int              `json:"original_repos"`
	ForkedRepos    int              `json:"forked_repos"`
	ArchivedRepos  int              `json:"archived_repos"`
	LanguageBytes  map[string]int64 `json:"language_bytes"`
	TopLanguage    string           `json:"top_language"`
	EstimatedTotal int              `json:"estimated_total_commits"`
}

// SummarizeRepos computes portfolio rollups. Language bytes come from the
// enrichment data when present, falling back to counting the primary
// language at one byte so unenriched repositories still register.
func SummarizeRepos(repos []githubapi.Repository) RepoSummary {
	summary := RepoSummary{
		TotalRepos:    len(repos),
		LanguageBytes: make(map[string]int64),
	}

	for _, repo := range repos {
		summary.TotalStars += repo.Stars
		summary.TotalForks += repo.Forks
		if repo.Fork {
			summary.ForkedRepos++
		} else {
			summary.OriginalRepos++
		}
		if repo.Archived {
			summary.ArchivedRepos++
		}
		if len(repo.Languages) > 0 {
			for language, bytes := range repo.Languages {
				summary.LanguageBytes[language] += bytes
			}
		} else if repo.Language != "" {
			summary.LanguageBytes[repo.Language]++
		}
		summary.EstimatedTotal += EstimateCommitCount(repo)
	}

	var topBytes int64 = -1
	languages := make([]string, 0, len(summary.LanguageBytes))
	for language := range summary.LanguageBytes {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	for _, language := range languages {
		if summary.LanguageBytes[language] > topBytes {
			topBytes = summary.LanguageBytes[language]
			summary.TopLanguage = language
		}
	}
	return summary
}

// EstimateCommitCount approximates a repository's commit count from its size
// and age without any network call. The estimate is deterministic for a
// given repository so repeated renders agree.
func EstimateCommitCount(repo githubapi.Repository) int {
	estimate := repo.SizeKB / 15

	if !repo.CreatedAt.IsZero() && !repo.PushedAt.IsZero() {
		activeDays := int(repo.PushedAt.Sub(repo.CreatedAt).Hours() / 24)
		if activeDays > 0 {
			// Assume a commit every other active day as a floor for
			// long-lived repositories that stay small.
			floor := activeDays / 2
			if floor > estimate {
				estimate = floor
			}
		}
	}

	if estimate < 1 && !repo.PushedAt.IsZero() {
		estimate = 1
	}
	if estimate < 0 {
		estimate = 0
	}
	return estimate
}
