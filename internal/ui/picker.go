package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/dockhand/internal/errors"
)

// PickItem is one choice in the picker.
type PickItem struct {
	ID    string
	Name  string
	Image string
	State string
}

// pickItem implements list.Item for the Bubbles list component.
type pickItem struct {
	item PickItem
}

func (i pickItem) Title() string {
	return StateSymbol(i.item.State) + " " + i.item.Name
}

func (i pickItem) Description() string {
	var parts []string
	if i.item.ID != "" {
		parts = append(parts, i.item.ID)
	}
	if i.item.Image != "" {
		parts = append(parts, i.item.Image)
	}
	if i.item.State != "" {
		parts = append(parts, i.item.State)
	}
	return strings.Join(parts, " | ")
}

func (i pickItem) FilterValue() string {
	return strings.Join([]string{i.item.Name, i.item.ID, i.item.Image}, " ")
}

// PickerModel is a Bubble Tea model for choosing one item from a list.
type PickerModel struct {
	list     list.Model
	selected *PickItem
	quitting bool
}

// pickerKeyMap defines key bindings for the picker.
type pickerKeyMap struct {
	Enter key.Binding
	Quit  key.Binding
}

var pickerKeys = pickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

// NewPickerModel creates a picker titled title.
func NewPickerModel(title string, items []PickItem) PickerModel {
	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = pickItem{item: it}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorMuted)

	l := list.New(listItems, delegate, 80, 15)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	return PickerModel{list: l}
}

// Init implements tea.Model.
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// While filtering, keys belong to the filter input.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, pickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(pickItem); ok {
				m.selected = &item.item
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, pickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m PickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the chosen item, or nil if cancelled.
func (m PickerModel) Selected() *PickItem {
	return m.selected
}

// Pick shows the picker on output, reading keys from input, and returns
// the chosen item. It returns nil when the user cancels. A single item is
// returned without asking.
func Pick(title string, items []PickItem, output io.Writer, input io.Reader) (*PickItem, error) {
	if len(items) == 0 {
		return nil, errors.New(errors.ErrInput, "Nothing to pick from", "Start a container first.")
	}
	if len(items) == 1 {
		return &items[0], nil
	}

	p := tea.NewProgram(
		NewPickerModel(title, items),
		tea.WithOutput(output),
		tea.WithInput(input),
	)

	finalModel, err := p.Run()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrInput, "Picker failed", "Pass the container name instead.")
	}

	if m, ok := finalModel.(PickerModel); ok {
		return m.Selected(), nil
	}

	return nil, nil
}

// IsTerminal returns true if the file descriptor is a terminal.
func IsTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
