// Package tui provides terminal user interface components for hearth-ctl.
//
// This package uses the Bubble Tea framework for the interactive egg picker
// behind "hearth-ctl pick".
//
// # Egg Picker
//
// The picker lists imported eggs and returns the operator's choice:
//
//	result, err := tui.RunPicker(eggs)
//	switch result.Action {
//	case tui.ActionSelect:
//	    // Show result.Egg and its variables
//	case tui.ActionExport:
//	    // Write result.Egg as an egg file
//	case tui.ActionQuit:
//	    // Exit
//	}
//
// When stdout is not a terminal, SimplePicker renders the same list as
// plain text.
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - UI components
//   - github.com/charmbracelet/lipgloss - Styling
package tui
