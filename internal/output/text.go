package output

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/hal/prflow/internal/aggregate"
	"github.com/hal/prflow/internal/format"
	"github.com/hal/prflow/internal/service"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// ansiRegex matches ANSI escape sequences
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// TextFormatter renders the report as a plain terminal summary with
// per-bucket and per-contributor tables.
type TextFormatter struct{}

// stripAnsi removes ANSI escape sequences from a string
func stripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// displayWidth returns the visible width of a string in terminal columns,
// accounting for wide characters and stripping ANSI escape sequences
func displayWidth(s string) int {
	return runewidth.StringWidth(stripAnsi(s))
}

// padRight pads a string with spaces to reach the target visible width
func padRight(s string, targetWidth int) string {
	w := displayWidth(s)
	if w >= targetWidth {
		return s
	}
	return s + strings.Repeat(" ", targetWidth-w)
}

// heading renders a section heading, bold when stdout is a terminal.
func heading(s string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return s
	}
	return color.New(color.Bold).Sprint(s)
}

// stat renders a duration stat as "9h (of 3)", or "-" when no record
// contributed a value.
func stat(s aggregate.DurationStat) string {
	if s.Empty() {
		return "-"
	}
	return fmt.Sprintf("%s (of %d)", format.Duration(s.Mean), s.Count)
}

// Write renders the full report.
func (f *TextFormatter) Write(res *service.Result, w io.Writer) error {
	rep := res.Report
	if rep == nil {
		fmt.Fprintln(w, "No report produced.")
		return nil
	}

	f.writeHeader(res, w)
	f.writeOverall(rep, w)
	f.writeBuckets(rep, w)
	f.writeAuthors(rep, w)
	f.writeReviewCoverage(rep, w)
	f.writeAnomalies(rep, w)
	return nil
}

func (f *TextFormatter) writeHeader(res *service.Result, w io.Writer) {
	rep := res.Report

	fmt.Fprintln(w, heading("PR FLOW REPORT"))
	fmt.Fprintf(w, "Generated:  %s\n", rep.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "Buckets:    %s\n", rep.BucketMode)
	fmt.Fprintf(w, "Issues:     %d scanned, %d PR references\n", res.IssuesScanned, res.RefsFound)

	if res.Fetch != nil {
		fs := res.Fetch
		fmt.Fprintf(w, "Fetched:    %d of %d PRs", fs.Fetched, fs.Requested)
		if fs.Failed > 0 {
			fmt.Fprintf(w, " (%d failed)", fs.Failed)
		}
		fmt.Fprintln(w)
		for _, fail := range fs.Failures {
			fmt.Fprintf(w, "  ! %s: %s\n", fail.Ref.String(), fail.Reason)
		}
	}
	if rep.CutoffExcluded > 0 {
		fmt.Fprintf(w, "Excluded:   %d PRs older than the cutoff\n", rep.CutoffExcluded)
	}
	if rep.Unbucketed > 0 {
		fmt.Fprintf(w, "Unbucketed: %d PRs without a creation timestamp\n", rep.Unbucketed)
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) writeOverall(rep *aggregate.Report, w io.Writer) {
	o := rep.Overall

	fmt.Fprintln(w, heading("OVERALL"))
	fmt.Fprintf(w, "  PRs:                %d total, %d merged, %d carry-over\n",
		o.TotalPRs, o.MergedPRs, o.CarryOverPRs)
	fmt.Fprintf(w, "  Merge rate:         %s\n", format.Percent(o.MergeRate))
	fmt.Fprintf(w, "  Avg size:           %s\n", format.SizeLabel(int(o.AvgSize+0.5)))
	fmt.Fprintf(w, "  Time to first review:     %s\n", stat(o.TimeToFirstReview))
	fmt.Fprintf(w, "  Time to merge:            %s\n", stat(o.TimeToMerge))
	fmt.Fprintf(w, "  First review -> merge:    %s\n", stat(o.TimeFirstReviewToMerge))
	fmt.Fprintf(w, "  In progress -> PR opened: %s\n", stat(o.InProgressToPRCreated))
	fmt.Fprintf(w, "  In progress -> PR merged: %s\n", stat(o.InProgressToPRMerged))
	fmt.Fprintf(w, "  PR merged -> resolved:    %s\n", stat(o.PRMergedToResolved))
	fmt.Fprintf(w, "  Reviews: %d, comments: %d, approval mentions: %d\n",
		o.ReviewCount, o.CommentCount, o.ApprovalMentions)
	fmt.Fprintln(w)
}

func (f *TextFormatter) writeBuckets(rep *aggregate.Report, w io.Writer) {
	if len(rep.Buckets) == 0 {
		return
	}

	const (
		colLabel = 12
		colPRs   = 5
		colMerge = 6
		colSize  = 9
		colStat  = 14
	)

	fmt.Fprintln(w, heading("BY PERIOD"))
	fmt.Fprintf(w, "%s %s %s %s %s %s\n",
		padRight("Period", colLabel),
		padRight("PRs", colPRs),
		padRight("Merged", colMerge),
		padRight("AvgSize", colSize),
		padRight("TTFReview", colStat),
		"TTMerge")
	fmt.Fprintln(w, strings.Repeat("-", colLabel+colPRs+colMerge+colSize+colStat+12))

	for _, b := range rep.Buckets {
		fmt.Fprintf(w, "%s %s %s %s %s %s\n",
			padRight(b.Label, colLabel),
			padRight(fmt.Sprintf("%d", b.TotalPRs), colPRs),
			padRight(format.Percent(b.MergeRate), colMerge),
			padRight(fmt.Sprintf("%.0f", b.AvgSize), colSize),
			padRight(stat(b.TimeToFirstReview), colStat),
			stat(b.TimeToMerge))
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) writeAuthors(rep *aggregate.Report, w io.Writer) {
	if len(rep.Authors) == 0 {
		return
	}

	const (
		colAuthor  = 20
		colPRs     = 5
		colMerge   = 6
		colSize    = 9
		colReviews = 8
	)

	fmt.Fprintln(w, heading("BY CONTRIBUTOR"))
	fmt.Fprintf(w, "%s %s %s %s %s %s\n",
		padRight("Author", colAuthor),
		padRight("PRs", colPRs),
		padRight("Merged", colMerge),
		padRight("AvgSize", colSize),
		padRight("Reviews", colReviews),
		"TTMerge")
	fmt.Fprintln(w, strings.Repeat("-", colAuthor+colPRs+colMerge+colSize+colReviews+12))

	for _, author := range rep.Authors {
		a := rep.ByAuthor[author]
		name := author
		if displayWidth(name) > colAuthor {
			name = runewidth.Truncate(name, colAuthor, "...")
		}
		fmt.Fprintf(w, "%s %s %s %s %s %s\n",
			padRight(name, colAuthor),
			padRight(fmt.Sprintf("%d", a.TotalPRs), colPRs),
			padRight(format.Percent(a.MergeRate), colMerge),
			padRight(fmt.Sprintf("%.0f", a.AvgSize), colSize),
			padRight(fmt.Sprintf("%d", rep.ReviewerDistribution[author]), colReviews),
			stat(a.TimeToMerge))
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) writeReviewCoverage(rep *aggregate.Report, w io.Writer) {
	if rep.TotalReviewInstances == 0 && len(rep.ApproverDistribution) == 0 {
		return
	}

	fmt.Fprintln(w, heading("REVIEW COVERAGE"))
	fmt.Fprintf(w, "  Review instances:  %d across %d PRs\n",
		rep.TotalReviewInstances, rep.PRsWithReviews)
	fmt.Fprintf(w, "  Multi-approver:    %s of merged PRs\n", format.Percent(rep.MultiApproverShare))

	if len(rep.ApproverDistribution) > 0 {
		counts := make([]int, 0, len(rep.ApproverDistribution))
		for n := range rep.ApproverDistribution {
			counts = append(counts, n)
		}
		sort.Ints(counts)
		parts := make([]string, 0, len(counts))
		for _, n := range counts {
			parts = append(parts, fmt.Sprintf("%d approver(s): %d", n, rep.ApproverDistribution[n]))
		}
		fmt.Fprintf(w, "  Approvals:         %s\n", strings.Join(parts, ", "))
	}

	for _, rv := range topReviewers(rep.ReviewerDistribution, 5) {
		fmt.Fprintf(w, "  %s reviewed %d PR(s)\n",
			padRight(rv.name, 18), rv.count)
	}
	fmt.Fprintln(w)
}

type reviewerCount struct {
	name  string
	count int
}

// topReviewers returns the n busiest reviewers, ties broken by name.
func topReviewers(dist map[string]int, n int) []reviewerCount {
	out := make([]reviewerCount, 0, len(dist))
	for name, count := range dist {
		out = append(out, reviewerCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (f *TextFormatter) writeAnomalies(rep *aggregate.Report, w io.Writer) {
	if len(rep.Anomalies) == 0 {
		return
	}

	fmt.Fprintln(w, heading("ANOMALIES"))
	for _, a := range rep.Anomalies {
		fmt.Fprintf(w, "  %s %s: %s\n", a.PR.String(), a.Field, a.Detail)
	}
	fmt.Fprintln(w)
}
