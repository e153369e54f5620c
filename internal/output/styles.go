package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Styles holds all lipgloss styles for text output
var Styles = defaultStyles()

type styleSet struct {
	// Component styles
	Timestamp lipgloss.Style
	Source    lipgloss.Style

	// Report styles
	Header  lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Danger  lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
}

func defaultStyles() styleSet {
	return styleSet{
		Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("244")), // Gray
		Source:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),  // Blue

		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("239")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Value:   lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),  // Green
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true), // Orange
		Danger:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true), // Red
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),             // Cyan
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	}
}

func plainStyles() styleSet {
	plain := lipgloss.NewStyle()
	return styleSet{
		Timestamp: plain,
		Source:    plain,
		Header:    plain.Bold(true),
		Label:     plain,
		Value:     plain,
		Success:   plain,
		Warning:   plain,
		Danger:    plain,
		Info:      plain,
		Muted:     plain,
	}
}

// ConfigureStyles drops colors when w is not a terminal
func ConfigureStyles(w io.Writer) {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		Styles = defaultStyles()
		return
	}
	Styles = plainStyles()
}

// StatusStyle returns a style based on cycle status
func StatusStyle(degraded, failed bool) lipgloss.Style {
	if failed {
		return Styles.Danger
	}
	if degraded {
		return Styles.Warning
	}
	return Styles.Success
}

// StatusText returns styled status text
func StatusText(degraded, failed bool) string {
	if failed {
		return Styles.Danger.Render("FAILED")
	}
	if degraded {
		return Styles.Warning.Render("DEGRADED")
	}
	return Styles.Success.Render("OK")
}

// RateStyle colors a pass rate: green from 95%, orange from 85%, red below
func RateStyle(rate float64) lipgloss.Style {
	switch {
	case rate >= 0.95:
		return Styles.Success
	case rate >= 0.85:
		return Styles.Warning
	default:
		return Styles.Danger
	}
}
