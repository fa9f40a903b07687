// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by every styled line the CLI prints.
const (
	// ColorPrimary is used for titles and stage names.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is used for secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess marks completed stages.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError marks failed stages.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is used for warnings and labels.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is used for command lines and references.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for headers.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for descriptions and placeholders.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success marks.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for failure marks.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warnings.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for command lines, keys and package references.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// failureLabelStyle labels the fields of a failure card.
	failureLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorWarning)

	// failureHintStyle is for the closing hint of a failure card.
	failureHintStyle = lipgloss.NewStyle().
				Foreground(ColorMuted).
				Italic(true)
)
