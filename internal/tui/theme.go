package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/interpretive-systems/erpview/internal/notify"
)

// Theme defines the colors used for rendering.
type Theme struct {
	AccentColor   string
	MutedColor    string
	DividerColor  string
	SelectedColor string
	SuccessColor  string
	WarningColor  string
	ErrorColor    string
	InfoColor     string
}

func darkTheme() Theme {
	return Theme{
		AccentColor:   "63",
		MutedColor:    "245",
		DividerColor:  "240",
		SelectedColor: "236",
		SuccessColor:  "34",
		WarningColor:  "214",
		ErrorColor:    "196",
		InfoColor:     "39",
	}
}

func lightTheme() Theme {
	return Theme{
		AccentColor:   "27",
		MutedColor:    "242",
		DividerColor:  "244",
		SelectedColor: "254",
		SuccessColor:  "22",
		WarningColor:  "130",
		ErrorColor:    "9",
		InfoColor:     "25",
	}
}

// GetTheme returns the named theme. Anything but "light" is dark.
func GetTheme(name string) Theme {
	if name == "light" {
		return lightTheme()
	}
	return darkTheme()
}

func (t Theme) fg(color, s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(s)
}

func (t Theme) DividerText(s string) string { return t.fg(t.DividerColor, s) }

func (t Theme) AccentText(s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.AccentColor)).Render(s)
}

func (t Theme) MutedText(s string) string { return t.fg(t.MutedColor, s) }

// SelectedLine marks a selected row with a background.
func (t Theme) SelectedLine(s string) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(t.SelectedColor)).Render(s)
}

// LevelText colors s by notification level.
func (t Theme) LevelText(level notify.Level, s string) string {
	switch level {
	case notify.Success:
		return t.fg(t.SuccessColor, s)
	case notify.Warning:
		return t.fg(t.WarningColor, s)
	case notify.Error:
		return t.fg(t.ErrorColor, s)
	}
	return t.fg(t.InfoColor, s)
}
