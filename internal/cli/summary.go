package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"stepflow/internal/models"
	"stepflow/internal/services"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"})
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RenderSummary formats a finished batch for the terminal.
func RenderSummary(s services.Summary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Batch "+s.BatchID) + "\n")
	b.WriteString(successStyle.Render(fmt.Sprintf("passed  %d", s.Succeeded)) + "\n")
	b.WriteString(errorStyle.Render(fmt.Sprintf("failed  %d", s.Failed)) + "\n")
	b.WriteString(fmt.Sprintf("total   %d", s.Total))
	if notRun := s.Total - s.Succeeded - s.Failed; notRun > 0 {
		b.WriteString("\n" + warnStyle.Render(fmt.Sprintf("not run %d", notRun)))
	}
	if s.Stopped {
		b.WriteString("\n" + warnStyle.Render("stopped early"))
	}
	if !s.FinishedAt.IsZero() {
		b.WriteString("\n" + dimStyle.Render("took "+s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()))
	}
	return boxStyle.Render(b.String())
}

// RenderSteps lists resolved step records, marking login steps.
func RenderSteps(recs []models.StepRecord) string {
	var b strings.Builder
	for _, r := range recs {
		mark := "  "
		if services.IsLoginStep(r) {
			mark = "🔐"
		}
		line := fmt.Sprintf("%s %2d. %-12s %s", mark, r.Order, r.Type, r.Name)
		if r.Target != "" {
			line += dimStyle.Render("  → " + r.Target)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// progressPrinter writes progress events as terminal lines.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *progressPrinter) OnProgress(stepIndex, totalSteps int, stepName, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	style := lipgloss.NewStyle()
	switch {
	case strings.HasPrefix(message, "✅"):
		style = successStyle
	case strings.HasPrefix(message, "❌"):
		style = errorStyle
	case strings.HasPrefix(message, "⏳"), strings.HasPrefix(message, "🛑"):
		style = dimStyle
	}
	prefix := dimStyle.Render(fmt.Sprintf("[%d/%d]", stepIndex, totalSteps))
	if stepName != "" {
		fmt.Fprintf(p.out, "%s %s %s\n", prefix, stepName, style.Render(message))
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", prefix, style.Render(message))
}
