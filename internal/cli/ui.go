package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/chocorepack/pkg/report"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

// outcomeStyles colors outcome names in summaries.
var outcomeStyles = map[report.Outcome]lipgloss.Style{
	report.OutcomePacked:     lipgloss.NewStyle().Foreground(colorGreen),
	report.OutcomeMirrored:   lipgloss.NewStyle().Foreground(colorBlue),
	report.OutcomeExists:     lipgloss.NewStyle().Foreground(colorGray),
	report.OutcomeDuplicate:  lipgloss.NewStyle().Foreground(colorDim),
	report.OutcomePackFailed: lipgloss.NewStyle().Foreground(colorRed),
	report.OutcomeNoMetadata: lipgloss.NewStyle().Foreground(colorYellow),
}

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written file.
func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func printKeyValue(w io.Writer, key, value string) {
	fmt.Fprintln(w, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// printNextStep prints a suggested next command.
func printNextStep(w io.Writer, description, cmd string) {
	fmt.Fprintln(w, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

// =============================================================================
// Run Summary
// =============================================================================

// printSummary prints outcome counts on one line followed by every package
// that needs attention.
func printSummary(w io.Writer, rep *report.Report) {
	counts := rep.Counts()
	var parts []string
	for _, o := range report.Outcomes {
		if n := counts[o]; n > 0 {
			parts = append(parts, StyleNumber.Render(fmt.Sprint(n))+" "+outcomeStyles[o].Render(string(o)))
		}
	}
	if len(parts) == 0 {
		printInfo(w, "No packages handled")
	} else {
		fmt.Fprintln(w, "  "+strings.Join(parts, StyleDim.Render(" · ")))
	}

	for _, e := range rep.Failed() {
		name := e.Name
		if e.Version != "" {
			name += " " + e.Version
		}
		printWarning(w, "%s: %s", name, e.Outcome)
		if e.Error != "" {
			printDetail(w, "%s", e.Error)
		}
	}
}
