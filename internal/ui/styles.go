package ui

import "github.com/charmbracelet/lipgloss"

// 256-colour palette codes.
const (
	ColorAccent = "39"  // headings, hit titles
	ColorURL    = "244" // URLs and secondary text
	ColorMatch  = "220" // highlighted snippet terms
	ColorOK     = "78"
	ColorWarn   = "214"
	ColorError  = "196"
)

// Styles holds the lipgloss styles used by the renderers.
type Styles struct {
	Header  lipgloss.Style
	Title   lipgloss.Style
	URL     lipgloss.Style
	Match   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns coloured styles for terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Title:   lipgloss.NewStyle().Bold(true),
		URL:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorURL)),
		Match:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorMatch)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorURL)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOK)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarn)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)),
	}
}

// NoColorStyles returns styles that render text unchanged.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:  plain,
		Title:   plain,
		URL:     plain,
		Match:   plain,
		Label:   plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
	}
}

// GetStyles picks DefaultStyles or NoColorStyles.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
