// Package report renders canonical plans and batch outcomes as markdown
// tables.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/plancanon/plan"
	"github.com/wbrown/plancanon/plan/batch"
)

// Pipelines lists every pipeline with its members from scan end to sink end.
func Pipelines(p *plan.Plan) string {
	if p == nil || len(p.Pipelines) == 0 {
		return "_No pipelines_"
	}

	rows := make([][]string, 0, len(p.Pipelines))
	for _, pl := range p.Pipelines {
		members := make([]string, 0, len(pl.Operators))
		for _, id := range pl.Operators {
			n, ok := p.Node(id)
			if !ok {
				members = append(members, fmt.Sprintf("#%d", id))
				continue
			}
			members = append(members, fmt.Sprintf("%s:%s", n.Label(), n.Stage))
		}
		row := []string{fmt.Sprintf("%d", pl.ID), strings.Join(members, " → "), "-", "-", "-"}
		if pl.Timed {
			row[2] = formatTime(pl.Start)
			row[3] = formatTime(pl.Stop)
			row[4] = formatTime(pl.Duration)
		}
		rows = append(rows, row)
	}

	var sb strings.Builder
	render(&sb, []string{"pipeline", "operators", "start", "stop", "duration"}, rows)
	sb.WriteString(fmt.Sprintf("\n_%d pipelines, %d operators_\n", len(p.Pipelines), p.Len()))
	return sb.String()
}

// Operators lists every operator in id order.
func Operators(p *plan.Plan) string {
	if p == nil || p.Root == nil {
		return "_Empty plan_"
	}

	var rows [][]string
	p.Root.Walk(func(n *plan.Node) bool {
		relation := n.Relation
		if n.Synthetic {
			relation = "(placeholder)"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", n.ID),
			n.Label(),
			fmt.Sprintf("%d", n.Pipeline),
			n.Stage.String(),
			humanize.Commaf(n.Cardinality),
			humanize.Commaf(n.Width),
			relation,
		})
		return true
	})

	var sb strings.Builder
	render(&sb, []string{"id", "operator", "pipeline", "stage", "cardinality", "width", "relation"}, rows)
	return sb.String()
}

// Summary lists the outcome of every plan in a batch.
func Summary(results []batch.Result) string {
	if len(results) == 0 {
		return "_No plans_"
	}

	failures := 0
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		row := []string{res.Name, "ok", "", "", "", res.Elapsed.Round(time.Microsecond).String()}
		if res.OK() {
			row[2] = fmt.Sprintf("%d", len(res.Plan.Pipelines))
			row[3] = fmt.Sprintf("%d", res.Plan.Len())
			if res.Cached {
				row[4] = "yes"
			}
		} else {
			failures++
			row[1] = "failed: " + res.Err.Error()
		}
		rows = append(rows, row)
	}

	var sb strings.Builder
	render(&sb, []string{"plan", "status", "pipelines", "operators", "cached", "elapsed"}, rows)
	sb.WriteString(fmt.Sprintf("\n_%s, %d failed_\n", pluralize(len(results), "plan"), failures))
	return sb.String()
}

func render(sb *strings.Builder, headers []string, rows [][]string) {
	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(sb,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// formatTime prints a time in the source's unit with at most three decimals
func formatTime(v float64) string {
	return humanize.FtoaWithDigits(v, 3)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
