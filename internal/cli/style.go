package cli

import "github.com/charmbracelet/lipgloss"

// Status is the outcome shown at the head of a report.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

var (
	okColor   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warnColor = lipgloss.AdaptiveColor{Light: "#D4A017", Dark: "#FFD866"}
	failColor = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	dimColor  = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
)

// badge renders a status tag. The renderer drops colors when the
// destination is not a terminal.
func (o *Output) badge(s Status) string {
	style := o.renderer.NewStyle().Bold(true)
	switch s {
	case StatusOK:
		style = style.Foreground(okColor)
	case StatusWarn:
		style = style.Foreground(warnColor)
	default:
		style = style.Foreground(failColor)
	}
	return style.Render("[" + string(s) + "]")
}

func (o *Output) dim(s string) string {
	return o.renderer.NewStyle().Foreground(dimColor).Render(s)
}
