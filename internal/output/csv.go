package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hal/prflow/internal/aggregate"
	"github.com/hal/prflow/internal/format"
	"github.com/hal/prflow/internal/service"
)

// CSVFormatter renders one row per aggregation group. The scope column
// distinguishes the overall roll-up, time buckets and per-author rows.
// Duration columns are mean hours; empty cells mean no record contributed.
type CSVFormatter struct{}

var csvHeader = []string{
	"scope", "label",
	"total_prs", "merged_prs", "carry_over_prs", "merge_rate", "avg_size",
	"time_to_first_review_hours", "time_to_merge_hours",
	"first_review_to_merge_hours",
	"in_progress_to_pr_created_hours", "in_progress_to_pr_merged_hours",
	"pr_merged_to_resolved_hours",
	"review_count", "comment_count", "approval_mentions",
}

// Write renders the report as CSV rows.
func (f *CSVFormatter) Write(res *service.Result, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	rep := res.Report
	if rep == nil {
		cw.Flush()
		return cw.Error()
	}

	if err := cw.Write(csvRow("overall", "overall", rep.Overall)); err != nil {
		return err
	}
	for _, b := range rep.Buckets {
		if err := cw.Write(csvRow("bucket", b.Label, b)); err != nil {
			return err
		}
	}
	for _, author := range rep.Authors {
		if err := cw.Write(csvRow("author", author, rep.ByAuthor[author])); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvRow(scope, label string, a aggregate.Aggregate) []string {
	return []string{
		scope,
		label,
		strconv.Itoa(a.TotalPRs),
		strconv.Itoa(a.MergedPRs),
		strconv.Itoa(a.CarryOverPRs),
		strconv.FormatFloat(a.MergeRate, 'f', 4, 64),
		strconv.FormatFloat(a.AvgSize, 'f', 1, 64),
		csvStat(a.TimeToFirstReview),
		csvStat(a.TimeToMerge),
		csvStat(a.TimeFirstReviewToMerge),
		csvStat(a.InProgressToPRCreated),
		csvStat(a.InProgressToPRMerged),
		csvStat(a.PRMergedToResolved),
		strconv.Itoa(a.ReviewCount),
		strconv.Itoa(a.CommentCount),
		strconv.Itoa(a.ApprovalMentions),
	}
}

func csvStat(s aggregate.DurationStat) string {
	if s.Empty() {
		return ""
	}
	return strconv.FormatFloat(format.Hours(s.Mean), 'f', 2, 64)
}
