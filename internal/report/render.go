package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vk/wheelgrid/internal/plan"
)

const (
	idWidth    = 44
	stateWidth = 11
	timeWidth  = 9
)

type styles struct {
	header lipgloss.Style
	faint  lipgloss.Style
	cell   func(width int) lipgloss.Style
	state  map[string]lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true),
		faint:  r.NewStyle().Faint(true),
		cell: func(width int) lipgloss.Style {
			return r.NewStyle().Width(width).MaxWidth(width)
		},
		state: map[string]lipgloss.Style{
			"succeeded": r.NewStyle().Foreground(lipgloss.Color("42")),
			"failed":    r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			"skipped":   r.NewStyle().Foreground(lipgloss.Color("244")),
			"running":   r.NewStyle().Foreground(lipgloss.Color("39")),
			"pending":   r.NewStyle().Foreground(lipgloss.Color("244")),
			"enabled":   r.NewStyle().Foreground(lipgloss.Color("42")),
			"disabled":  r.NewStyle().Foreground(lipgloss.Color("244")),
		},
	}
}

func (s styles) row(id, state, duration, detail string) string {
	stateStyle, ok := s.state[state]
	if !ok {
		stateStyle = lipgloss.NewStyle()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		s.cell(idWidth).Render(truncate(id, idWidth-1)),
		s.cell(stateWidth).Inherit(stateStyle).Render(state),
		s.cell(timeWidth).Render(duration),
		detail,
	)
}

// RenderSummary writes the job table and the run outcome.
func RenderSummary(w io.Writer, r *Report) error {
	s := newStyles(w)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", s.header.Render(fmt.Sprintf("Run %s: pipeline %s, %s", r.RunID, r.Pipeline, r.Event)))
	if !r.Triggered {
		fmt.Fprintf(&b, "%s\n", s.faint.Render("The pipeline is not triggered by this event; nothing ran."))
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%s\n", s.faint.Render(s.row("JOB", "STATE", "TIME", "DETAIL")))
	for _, j := range r.Jobs {
		detail := j.Reason
		if j.SkippedBy != "" {
			detail = "needs " + j.SkippedBy
		}
		if j.PublishPhase != "" {
			detail = strings.TrimSpace("phase " + j.PublishPhase + " " + detail)
		}
		fmt.Fprintf(&b, "%s\n", s.row(j.ID, j.State, formatDuration(j.Duration()), firstLine(detail)))
	}

	fmt.Fprintf(&b, "\nTarget: %s", r.Target)
	if r.PublishPhase != "" {
		fmt.Fprintf(&b, "  Publish: %s", r.PublishPhase)
	}
	fmt.Fprintf(&b, "  Artifacts: %d\n", len(r.Artifacts))
	for _, warning := range r.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", warning)
	}

	outcome := r.Outcome
	if st, ok := s.state[outcome]; ok {
		outcome = st.Render(outcome)
	}
	fmt.Fprintf(&b, "Outcome: %s\n", outcome)

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderPlan writes the instances and steps a plan will run.
func RenderPlan(w io.Writer, p *plan.Plan) error {
	s := newStyles(w)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", s.header.Render(fmt.Sprintf("Plan for pipeline %s, %s", p.Pipeline, p.Event.String())))
	if !p.Triggered {
		fmt.Fprintf(&b, "%s\n", s.faint.Render("Not triggered."))
		_, err := io.WriteString(w, b.String())
		return err
	}
	fmt.Fprintf(&b, "Gates: staging=%t production=%t (target %s)\n", p.Gate.Staging, p.Gate.Production, p.Gate.Target())

	for _, inst := range p.Instances {
		state := "enabled"
		if !inst.Enabled {
			state = "disabled"
		}
		deps, _ := p.Graph.Dependencies(inst.ID)
		detail := ""
		if len(deps) > 0 {
			detail = "after " + strings.Join(deps, ", ")
		}
		fmt.Fprintf(&b, "%s\n", s.row(inst.ID, state, "", detail))
		for _, step := range inst.Steps {
			mark := "+"
			if !step.Enabled || !inst.Enabled {
				mark = "-"
			}
			fmt.Fprintf(&b, "%s\n", s.faint.Render(fmt.Sprintf("    %s %s", mark, step.ID())))
		}
	}
	for _, warning := range p.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", warning)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
