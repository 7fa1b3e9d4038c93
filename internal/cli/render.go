package cli

import (
	"fmt"
	"io"
	"strings"

	"taskify/internal/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted  = ac("240", "243")
	colorHigh   = ac("160", "203")
	colorMedium = ac("136", "221")
	colorLow    = ac("28", "114")
	colorAccent = ac("27", "62")
)

type renderer struct {
	out io.Writer
	r   *lipgloss.Renderer

	id        lipgloss.Style
	muted     lipgloss.Style
	completed lipgloss.Style
	header    lipgloss.Style
	priority  map[models.TaskPriority]lipgloss.Style
}

func newRenderer(out io.Writer, noColor bool) *renderer {
	r := lipgloss.NewRenderer(out)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}

	return &renderer{
		out:       out,
		r:         r,
		id:        r.NewStyle().Foreground(colorMuted),
		muted:     r.NewStyle().Foreground(colorMuted),
		completed: r.NewStyle().Strikethrough(true).Foreground(colorMuted),
		header:    r.NewStyle().Bold(true).Foreground(colorAccent),
		priority: map[models.TaskPriority]lipgloss.Style{
			models.PriorityHigh:   r.NewStyle().Bold(true).Foreground(colorHigh),
			models.PriorityMedium: r.NewStyle().Foreground(colorMedium),
			models.PriorityLow:    r.NewStyle().Foreground(colorLow),
		},
	}
}

func statusMark(s models.TaskStatus) string {
	switch s {
	case models.StatusCompleted:
		return "[x]"
	case models.StatusInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

func (rn *renderer) priorityLabel(p models.TaskPriority) string {
	if p == "" {
		p = models.PriorityMedium
	}
	style, ok := rn.priority[p]
	if !ok {
		style = rn.muted
	}
	return style.Render(fmt.Sprintf("%-6s", p))
}

func (rn *renderer) taskLine(t models.Task) string {
	title := t.Title
	if t.Status == models.StatusCompleted {
		title = rn.completed.Render(title)
	}

	parts := []string{
		rn.id.Render(t.ID.String()[:8]),
		statusMark(t.Status),
		rn.priorityLabel(t.Priority),
		title,
	}

	var meta []string
	if t.Category != "" && t.Category != models.DefaultCategory {
		meta = append(meta, "@"+t.Category)
	}
	if t.DueDate != nil {
		meta = append(meta, "due "+t.DueDate.UTC().Format("2006-01-02"))
	}
	for _, tag := range t.Tags {
		meta = append(meta, "#"+tag)
	}
	if len(meta) > 0 {
		parts = append(parts, rn.muted.Render(strings.Join(meta, " ")))
	}
	return strings.Join(parts, "  ")
}

func (rn *renderer) taskList(tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(rn.out, rn.muted.Render("No tasks"))
		return
	}
	for _, t := range tasks {
		fmt.Fprintln(rn.out, rn.taskLine(t))
	}
}

func (rn *renderer) summary(s models.TaskSummary, categories []string) {
	bar := progressBar(s.Progress, 20)
	lines := []string{
		rn.header.Render("Overview"),
		fmt.Sprintf("Total        %d", s.Total),
		fmt.Sprintf("Completed    %d", s.Completed),
		fmt.Sprintf("In progress  %d", s.InProgress),
		fmt.Sprintf("Pending      %d", s.Pending),
		fmt.Sprintf("Progress     %s %d%%", bar, s.Progress),
	}
	if len(categories) > 0 {
		lines = append(lines, rn.muted.Render("Categories   "+strings.Join(categories, ", ")))
	}
	box := rn.r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1)
	fmt.Fprintln(rn.out, box.Render(strings.Join(lines, "\n")))
}

func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
