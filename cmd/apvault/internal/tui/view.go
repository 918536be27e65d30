// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	balanceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	statusWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	increaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	decreaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("apvault watch"))
	b.WriteString("\n")

	if !m.haveSnap {
		if m.err != nil {
			b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		} else {
			b.WriteString(subtitleStyle.Render("Loading..."))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(helpLine(keys.Quit)))
		return b.String()
	}

	info := m.snap.Info
	var lines []string
	lines = append(lines,
		row("Program", info.Program),
		row("Vault", fmt.Sprintf("%s (bump %d)", info.Address, info.Bump)),
		row("Policy", info.Policy),
	)
	if info.Initialized {
		lines = append(lines,
			row("Mint", info.Mint),
			labelStyle.Render("Balance")+balanceStyle.Render(fmt.Sprintf("%d", info.Balance)),
		)
	} else {
		lines = append(lines, labelStyle.Render("State")+statusWarnStyle.Render("not initialized"))
	}
	if m.snap.Own != "" {
		lines = append(lines,
			row("Own account", m.snap.Own),
			row("Own balance", fmt.Sprintf("%d", m.snap.OwnBalance)),
		)
	}
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	if len(m.changes) > 0 {
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render("Recent changes"))
		b.WriteString("\n")
		for _, c := range m.changes {
			style, sign := increaseStyle, "+"
			if c.Delta < 0 {
				style, sign = decreaseStyle, ""
			}
			fmt.Fprintf(&b, "  %s  %s  %d\n",
				c.At.Format("15:04:05"), style.Render(fmt.Sprintf("%s%d", sign, c.Delta)), c.To)
		}
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}

	status := fmt.Sprintf("updated %s, every %s", m.updated.Format("15:04:05"), m.interval)
	b.WriteString(helpStyle.Render(status + "  " + helpLine(keys.Refresh, keys.Quit)))
	return b.String()
}
