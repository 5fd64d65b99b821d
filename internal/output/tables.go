package output

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/yourusername/termctl/internal/config"
)

// PrintSchemaTable prints the settable config keys with their types and
// defaults. Long cells are cut to fit width columns.
func PrintSchemaTable(w io.Writer, fields []config.Field, width int) {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Type", "Default")

	// Key and type columns are never cut; the rest goes to the default
	typeWidth := width / 3
	defaultWidth := width - 40 - typeWidth
	if defaultWidth < 12 {
		defaultWidth = 12
	}

	for _, f := range fields {
		table.Append(
			f.Key,
			truncate(f.Type, max(typeWidth, 16)),
			truncate(orDash(f.Default), defaultWidth),
		)
	}

	table.Render()
}

// PrintOptionsTable prints key=value options in the order given
func PrintOptionsTable(w io.Writer, opts []config.Option) {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Value")

	for _, opt := range opts {
		table.Append(opt.Key, orDash(strings.TrimSpace(opt.Value)))
	}

	table.Render()
}

// Helper functions

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
