package main

import (
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ffbatch/internal/plan"
)

var titleCaser = cases.Title(language.Und)

func actionLabel(action plan.Action) string {
	return titleCaser.String(action.String())
}

var planColumns = []column{
	{title: "#", align: alignRight},
	{title: "Input"},
	{title: "Output"},
	{title: "Action"},
	{title: "Duration", align: alignRight},
	{title: "Note"},
}

func renderPlanTable(p *plan.Plan) string {
	rows := make([][]string, 0, len(p.Targets))
	for i, target := range p.Targets {
		duration := ""
		if target.DurationSeconds > 0 {
			duration = formatDuration(target.DurationSeconds)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			target.InputPath,
			target.OutputPath,
			actionLabel(target.Action),
			duration,
			target.ErrorMessage,
		})
	}
	return renderTable(planColumns, rows)
}
