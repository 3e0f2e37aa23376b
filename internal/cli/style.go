package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/tasking/internal/canonical"
	"github.com/roach88/tasking/internal/engine"
	"github.com/roach88/tasking/internal/task"
)

// Style definitions.
var (
	idStyle    = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	statusNew        = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	statusAssigned   = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusCancelled  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func styleForStatus(s task.Status) lipgloss.Style {
	switch s {
	case task.StatusNew:
		return statusNew
	case task.StatusAssigned:
		return statusAssigned
	case task.StatusInProgress:
		return statusInProgress
	case task.StatusDone:
		return statusDone
	case task.StatusFailed:
		return statusFailed
	case task.StatusCancelled:
		return statusCancelled
	default:
		return lipgloss.NewStyle()
	}
}

func statusBadge(s task.Status) string {
	return styleForStatus(s).Render(fmt.Sprintf("[%s]", s))
}

func passMark(ok bool) string {
	if ok {
		return passStyle.Render("\u2713")
	}
	return failStyle.Render("\u2717")
}

// writeTaskLine renders one task as a list row.
func writeTaskLine(w io.Writer, t task.Task) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		idStyle.Render(t.ID), statusBadge(t.Status), t.OrderItemID, t.ServiceType)
}

// writeTask renders every field of a task.
func writeTask(w io.Writer, t task.Task) {
	fmt.Fprintf(w, "%s %s\n", idStyle.Render(t.ID), statusBadge(t.Status))
	field := func(name, value string) {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", name+":")), value)
	}

	field("order item", t.OrderItemID)
	field("service", t.ServiceType)
	if t.ProviderID != nil {
		field("provider", *t.ProviderID)
	}
	if !t.Location.IsZero() {
		field("location", formatLocation(t.Location))
	}
	if !t.Flight.IsZero() {
		flight := t.Flight.IATA
		if t.Flight.STD != nil {
			flight = strings.TrimSpace(flight + " " + formatTime(*t.Flight.STD))
		}
		field("flight", flight)
	}
	if len(t.CustomerHint) > 0 {
		field("customer hint", compactJSON(t.CustomerHint))
	}
	if t.SLADueAt != nil {
		field("sla due", formatTime(*t.SLADueAt))
	}
	field("created", formatTime(t.CreatedAt))
	field("updated", formatTime(t.UpdatedAt))

	if len(t.Checklist) > 0 {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("checklist:"))
		for _, item := range t.Checklist {
			box := "[ ]"
			if item.Done {
				box = "[x]"
			}
			line := fmt.Sprintf("%s %s %s", box, item.Key, item.Title)
			if !item.Required {
				line += dimStyle.Render(" (optional)")
			}
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// writeEvents renders an event log, oldest first.
func writeEvents(w io.Writer, events []task.Event) {
	for _, ev := range events {
		from := string(ev.FromStatus)
		if from == "" {
			from = "-"
		}
		line := fmt.Sprintf("#%-4d %s  %-10s %s -> %s",
			ev.ID, dimStyle.Render(formatTime(ev.Timestamp)), ev.Code, from, statusBadge(ev.ToStatus))
		if len(ev.Payload) > 0 {
			line += "  " + dimStyle.Render(compactJSON(ev.Payload))
		}
		fmt.Fprintln(w, line)
	}
}

// writeVerification renders one replay check.
func writeVerification(w io.Writer, v engine.Verification) {
	history := make([]string, len(v.History))
	for i, s := range v.History {
		history[i] = string(s)
	}
	fmt.Fprintf(w, "%s %s  %d events  %s\n",
		passMark(v.OK()), idStyle.Render(v.TaskID), v.Events, strings.Join(history, " -> "))
	if !v.OK() {
		fmt.Fprintf(w, "  %s\n", failStyle.Render(v.Problem))
	}
}

func formatLocation(l *task.Location) string {
	var parts []string
	for _, p := range []struct{ name, value string }{
		{"terminal", l.Terminal}, {"zone", l.Zone}, {"gate", l.Gate},
	} {
		if p.value != "" {
			parts = append(parts, p.name+" "+p.value)
		}
	}
	return strings.Join(parts, ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// compactJSON renders v as canonical JSON, falling back to %v.
func compactJSON(v any) string {
	b, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
