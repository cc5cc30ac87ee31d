// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for presetctl.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

// Palette: deep ocean teals.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled messages. Status lines go to Out, problems to Err.
//
// # Thread Safety
//
// Not safe for concurrent use; presetctl prints from one goroutine.
type Printer struct {
	Out  io.Writer
	Err  io.Writer
	Mode Mode
}

// NewPrinter returns a Printer writing to out and errOut.
func NewPrinter(out, errOut io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Err: errOut, Mode: mode}
}

func (p *Printer) plain() bool {
	return p.Mode == ModePlain
}

// Title prints a styled title. Plain mode omits it.
func (p *Printer) Title(text string) {
	if p.plain() {
		return
	}
	fmt.Fprintln(p.Out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	if p.plain() {
		fmt.Fprintf(p.Out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	if p.plain() {
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.Err, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message
func (p *Printer) Error(text string) {
	if p.plain() {
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.Err, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	if p.plain() {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// =============================================================================
// Preset Rendering
// =============================================================================

// Preset prints a preset summary followed by one line per activity.
//
// Plain mode emits tab-separated columns: group, hours, priority, title.
func (p *Printer) Preset(preset datatypes.PresetOutput) {
	if p.plain() {
		fmt.Fprintf(p.Out, "PRESET\t%s\t%s\t%d\t%.1f\n",
			preset.Name, preset.TechCategory, len(preset.Activities), preset.TotalHours())
		for _, a := range preset.Activities {
			fmt.Fprintf(p.Out, "%s\t%.1f\t%s\t%s\n", a.Group, a.EstimatedHours, a.Priority, a.Title)
		}
		return
	}

	header := fmt.Sprintf("%s\n%s",
		Styles.Title.Render(preset.Name),
		Styles.Muted.Render(fmt.Sprintf("%s · %d activities · %.1fh",
			preset.TechCategory, len(preset.Activities), preset.TotalHours())))

	var b strings.Builder
	for i, a := range preset.Activities {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %-10s %5.1fh  %s %s",
			IconBullet.Render(),
			Styles.Subtitle.Render(string(a.Group)),
			a.EstimatedHours,
			a.Title,
			Styles.Muted.Render("("+string(a.Priority)+")"))
	}
	fmt.Fprintln(p.Out, Styles.Box.Render(header+"\n\n"+b.String()))
}

// Violations prints a validation outcome. It returns true when valid.
func (p *Printer) Violations(valid bool, violations []string) bool {
	if valid {
		p.Success("preset is valid")
		return true
	}
	p.Error(fmt.Sprintf("preset has %d violation(s)", len(violations)))
	for _, v := range violations {
		if p.plain() {
			fmt.Fprintf(p.Err, "VIOLATION: %s\n", v)
		} else {
			fmt.Fprintf(p.Err, "  %s %s\n", IconBullet.Render(), v)
		}
	}
	return false
}
