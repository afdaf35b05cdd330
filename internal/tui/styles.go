package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	heading   lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	selected  lipgloss.Style
	badge     lipgloss.Style
	muted     lipgloss.Style
	dim       lipgloss.Style
	status    lipgloss.Style
	error     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		heading:   r.NewStyle().Bold(true),
		tab:       r.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245")),
		activeTab: r.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("25")),
		selected:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		badge:     r.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")),
		muted:     r.NewStyle().Foreground(lipgloss.Color("245")),
		dim:       r.NewStyle().Foreground(lipgloss.Color("240")).Faint(true),
		status:    r.NewStyle().Foreground(lipgloss.Color("214")),
		error:     r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
