package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/rules"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionSelect
	ActionExport
	ActionQuit
)

// PickerResult holds the result of the picker
type PickerResult struct {
	Action Action
	Egg    *model.Egg
}

// eggItem implements list.Item for egg display
type eggItem struct {
	egg *model.Egg
}

func (i eggItem) Title() string {
	return i.egg.Name
}

func (i eggItem) Description() string {
	required := 0
	for _, v := range i.egg.Variables {
		if set, err := rules.Parse(v.Rules); err == nil && set.Has(rules.Required) {
			required++
		}
	}

	return fmt.Sprintf("%s | %d variables (%d required) | %s",
		i.egg.Author,
		len(i.egg.Variables),
		required,
		truncate(i.egg.DefaultImage, 40),
	)
}

func (i eggItem) FilterValue() string {
	return i.egg.Name
}

// truncate keeps the last maxLen runes of s, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return "..." + string(r[len(r)-maxLen+3:])
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("208")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)
)

// Model is the bubbletea model for the egg picker
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
	width    int
	height   int
}

// NewPicker creates a new egg picker
func NewPicker(eggs []*model.Egg) Model {
	items := make([]list.Item, len(eggs))
	for i, egg := range eggs {
		items[i] = eggItem{egg: egg}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedStyle
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	l := list.New(items, delegate, 80, 20)
	l.Title = "Hearth - Select Egg"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		// Don't handle keys if filtering
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(eggItem); ok {
				m.result = PickerResult{Action: ActionSelect, Egg: item.egg}
				m.quitting = true
				return m, tea.Quit
			}

		case "e":
			if item, ok := m.list.SelectedItem().(eggItem); ok {
				m.result = PickerResult{Action: ActionExport, Egg: item.egg}
				m.quitting = true
				return m, tea.Quit
			}

		case "q", "esc":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[enter] Select  [e] Export  [/] Filter  [q] Quit")

	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive egg picker
func RunPicker(eggs []*model.Egg) (PickerResult, error) {
	if len(eggs) == 0 {
		return PickerResult{Action: ActionQuit}, nil
	}

	m := NewPicker(eggs)
	p := tea.NewProgram(m, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimplePicker is a non-interactive picker that just lists eggs
func SimplePicker(eggs []*model.Egg) string {
	var sb strings.Builder

	sb.WriteString("Hearth - Eggs\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(eggs) == 0 {
		sb.WriteString("No eggs found.\n")
		sb.WriteString("Import one with: hearth-ctl egg import <file>\n")
		return sb.String()
	}

	for i, egg := range eggs {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, egg.Name, egg.Author))
		sb.WriteString(fmt.Sprintf("   Image: %s | Variables: %d\n\n",
			truncate(egg.DefaultImage, 40), len(egg.Variables)))
	}

	return sb.String()
}
