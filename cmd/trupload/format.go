package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hochfrequenz/trupload/internal/domain"
	"github.com/hochfrequenz/trupload/internal/history"
)

// renderSuite prints the parsed report as a tree of sections and cases
func renderSuite(suite *domain.Suite) string {
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedRounded)

	l.AppendItem(fmt.Sprintf("%s (%d cases, %ss)", suite.Name, suite.CaseCount(), suite.Time.String()))
	l.Indent()
	for _, sec := range suite.Sections {
		l.AppendItem(fmt.Sprintf("%s (%d cases)", sec.Name, len(sec.Cases)))
		l.Indent()
		for _, p := range sec.Properties {
			l.AppendItem(text.FgHiBlack.Sprint(p.Description()))
		}
		for _, c := range sec.Cases {
			item := fmt.Sprintf("[%s] %s", statusColor(c.Status).Sprint(c.Status.String()), c.Name)
			if c.CaseID != nil {
				item += fmt.Sprintf(" (C%d)", *c.CaseID)
			}
			l.AppendItem(item)
		}
		l.UnIndent()
	}
	l.UnIndent()

	var counts []string
	for _, st := range []domain.Status{domain.StatusPassed, domain.StatusFailed, domain.StatusSkipped} {
		if n := suite.StatusCounts()[st]; n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, st))
		}
	}
	return l.Render() + "\n" + strings.Join(counts, ", ")
}

func statusColor(s domain.Status) text.Color {
	switch s {
	case domain.StatusPassed:
		return text.FgGreen
	case domain.StatusFailed:
		return text.FgRed
	default:
		return text.FgYellow
	}
}

// renderHistory prints upload attempts as a table
func renderHistory(uploads []*history.Upload) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"STARTED", "PROJECT", "REPORT", "STATUS", "RUN", "RESULTS", "DURATION", "MESSAGE"})

	for _, u := range uploads {
		status := text.FgGreen.Sprint(string(u.Status))
		if u.Status == history.StatusFailed {
			status = text.FgRed.Sprint(string(u.Status))
		}
		run := "-"
		if u.RunID > 0 {
			run = fmt.Sprintf("R%d", u.RunID)
		}
		t.AppendRow(table.Row{
			u.StartedAt.Local().Format("2006-01-02 15:04:05"),
			u.Project,
			u.ReportFile,
			status,
			run,
			u.ResultCount,
			u.Duration().Round(time.Millisecond),
			truncate(u.Message, 60),
		})
	}
	return t.Render()
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
