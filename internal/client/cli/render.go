package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dmitrijs2005/paykiosk/internal/client/eventlog"
	"github.com/dmitrijs2005/paykiosk/internal/client/payment"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

var (
	amountStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#0055AA", Dark: "#1E90FF"})

	methodStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#888888", Dark: "#808080"})
	messageStyle = lipgloss.NewStyle().Bold(true)
	statusStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#AA8800", Dark: "#FFD700"})
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"})
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"})
)

func renderAmount(display string) string {
	return amountStyle.Render(display)
}

// renderEvent prints one log line: the message, then the call that caused it.
func renderEvent(e eventlog.Event) string {
	return messageStyle.Render(e.Message) + " " + methodStyle.Render(e.Method)
}

func renderStatus(s string) string {
	return statusStyle.Render(s)
}

func renderOutcome(a *payment.Attempt) string {
	switch a.State() {
	case payment.Complete:
		return okStyle.Render("Done")
	case payment.Canceled:
		return failStyle.Render("Canceled")
	default:
		return failStyle.Render("Failed")
	}
}

func renderReader(r terminal.Reader) string {
	var b strings.Builder
	b.WriteString(r.Identity())
	if r.DeviceType != "" {
		fmt.Fprintf(&b, " (%s)", r.DeviceType)
	}
	if r.BatteryLevel > 0 {
		fmt.Fprintf(&b, " battery %d%%", int(r.BatteryLevel*100))
	}
	return b.String()
}
