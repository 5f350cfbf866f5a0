package output

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A4FCF", Dark: "#9D8CFF"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	colorError   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	colorCode    = lipgloss.AdaptiveColor{Light: "#0550AE", Dark: "#79C0FF"}
)

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Header    lipgloss.Style
	Subheader lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	Macro     lipgloss.Style
	Location  lipgloss.Style
	Code      lipgloss.Style
}

// NewStyles returns colored styles for a terminal and plain ones otherwise.
func NewStyles(colored bool) Styles {
	if !colored {
		plain := lipgloss.NewStyle()
		return Styles{
			Header:    plain,
			Subheader: plain,
			Success:   plain,
			Warning:   plain,
			Error:     plain,
			Info:      plain,
			Muted:     plain,
			Bold:      plain,
			Macro:     plain,
			Location:  plain,
			Code:      plain,
		}
	}

	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginBottom(1),
		Subheader: lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Success:   lipgloss.NewStyle().Foreground(colorSuccess),
		Warning:   lipgloss.NewStyle().Foreground(colorWarning),
		Error:     lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Info:      lipgloss.NewStyle().Foreground(colorPrimary),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
		Bold:      lipgloss.NewStyle().Bold(true),
		Macro:     lipgloss.NewStyle().Foreground(colorCode).Bold(true),
		Location:  lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
		Code:      lipgloss.NewStyle().Foreground(colorCode),
	}
}
