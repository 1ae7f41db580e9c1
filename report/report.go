// Package report aggregates session results into the human-facing run
// summary: counts per outcome category, timings and an optional
// per-user detail table.
package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"chat-probe/domain"
	probeerrors "chat-probe/errors"
)

// Category buckets a session outcome for the aggregate view. The
// distinction matters: all ConnectFailure hints at a capacity limit,
// sparse TransportError at flakiness.
type Category string

const (
	CategorySuccess        Category = "success"
	CategoryAuthFailure    Category = "auth_failure"
	CategoryConnectFailure Category = "connect_failure"
	CategoryTransportError Category = "transport_error"
	CategoryCancelled      Category = "cancelled"
	CategoryOther          Category = "other_error"
)

// Categorize maps one result onto its reporting bucket.
func Categorize(res domain.SessionResult) Category {
	switch {
	case res.Cancelled:
		return CategoryCancelled
	case res.Err == nil:
		return CategorySuccess
	case errors.Is(res.Err, probeerrors.ErrAuthFailure):
		return CategoryAuthFailure
	case errors.Is(res.Err, probeerrors.ErrConnectFailure):
		return CategoryConnectFailure
	case errors.Is(res.Err, probeerrors.ErrTransportError):
		return CategoryTransportError
	}
	return CategoryOther
}

// Report is the aggregate of one finished run.
type Report struct {
	Results []domain.SessionResult
	Elapsed time.Duration
}

func Build(results []domain.SessionResult, elapsed time.Duration) Report {
	return Report{Results: results, Elapsed: elapsed}
}

func (r Report) Counts() map[Category]int {
	return lo.CountValuesBy(r.Results, Categorize)
}

// FailureRatio is the errored-session share of the whole run.
// Cancelled sessions are partial results, not failures.
func (r Report) FailureRatio() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	failed := lo.CountBy(r.Results, domain.SessionResult.Failed)
	return float64(failed) / float64(len(r.Results))
}

// ExceedsThreshold reports whether the run as a whole failed.
func (r Report) ExceedsThreshold(threshold float64) bool {
	return r.FailureRatio() > threshold
}

// Render prints the aggregate summary and, on request, the per-user table.
func (r Report) Render(w io.Writer, detail bool) {
	counts := r.Counts()
	success := counts[CategorySuccess]

	header := fmt.Sprintf("Run finished: %d/%d sessions succeeded in %s",
		success, len(r.Results), r.Elapsed.Round(time.Millisecond))
	if success == len(r.Results) {
		fmt.Fprintln(w, color.Green.Render(header))
	} else {
		fmt.Fprintln(w, color.Yellow.Render(header))
	}

	for _, category := range []Category{
		CategorySuccess,
		CategoryAuthFailure,
		CategoryConnectFailure,
		CategoryTransportError,
		CategoryCancelled,
		CategoryOther,
	} {
		if n := counts[category]; n > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", category, n)
		}
	}
	fmt.Fprintf(w, "  failure ratio:   %.2f\n", r.FailureRatio())

	if durations := r.successDurations(); len(durations) > 0 {
		fmt.Fprintf(w, "  session time:    min %s | max %s | avg %s\n",
			lo.Min(durations).Round(time.Millisecond),
			lo.Max(durations).Round(time.Millisecond),
			average(durations).Round(time.Millisecond),
		)
	}

	if detail {
		r.renderDetail(w)
	}
}

func (r Report) renderDetail(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"User", "Connected", "Joined", "System", "Chat", "Duration", "Outcome"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, res := range r.Results {
		outcome := string(Categorize(res))
		if res.Err != nil {
			outcome = res.Err.Error()
		}
		table.Append([]string{
			res.User,
			fmt.Sprintf("%t", res.Connected),
			fmt.Sprintf("%t", res.JoinAcknowledged),
			fmt.Sprintf("%d", res.Observed(domain.KindSystem)),
			fmt.Sprintf("%d", res.Observed(domain.KindChat)),
			res.Duration.Round(time.Millisecond).String(),
			outcome,
		})
	}
	table.Render()
}

func (r Report) successDurations() []time.Duration {
	return lo.FilterMap(r.Results, func(res domain.SessionResult, _ int) (time.Duration, bool) {
		return res.Duration, res.Err == nil && !res.Cancelled
	})
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	return lo.Sum(durations) / time.Duration(len(durations))
}
