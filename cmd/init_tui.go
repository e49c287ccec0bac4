package cmd

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type initOptions struct {
	ToolType  string
	RunType   string
	Output    string
	Workspace string
}

type initModel struct {
	inputs   []textinput.Model
	defaults initOptions
	focusIdx int
	canceled bool
	done     bool
}

func initialInitModel(defaults initOptions) initModel {
	tool := textinput.New()
	tool.Placeholder = defaults.ToolType
	tool.Focus()
	tool.CharLimit = 16
	tool.Width = 20

	runType := textinput.New()
	runType.Placeholder = defaults.RunType
	if runType.Placeholder == "" {
		runType.Placeholder = "lib, libfree or empty"
	}
	runType.CharLimit = 16
	runType.Width = 20

	output := textinput.New()
	output.Placeholder = defaults.Output
	output.CharLimit = 256
	output.Width = 40

	workspace := textinput.New()
	workspace.Placeholder = defaults.Workspace
	workspace.CharLimit = 64
	workspace.Width = 20

	return initModel{
		inputs:   []textinput.Model{tool, runType, output, workspace},
		defaults: defaults,
	}
}

func (m initModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			m.done = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		case "tab", "shift+tab", "down", "up":
			if msg.String() == "up" || msg.String() == "shift+tab" {
				m.focusIdx--
			} else {
				m.focusIdx++
			}
			if m.focusIdx >= len(m.inputs) {
				m.focusIdx = 0
			} else if m.focusIdx < 0 {
				m.focusIdx = len(m.inputs) - 1
			}
			for i := range m.inputs {
				if i == m.focusIdx {
					m.inputs[i].Focus()
				} else {
					m.inputs[i].Blur()
				}
			}
			return m, nil
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m initModel) View() string {
	s := "\n"
	labels := []string{"Tool type (cmd, DiaNN, MQ)", "Run type", "Output path", "Workspace"}

	for i, input := range m.inputs {
		s += labels[i] + ": " + input.View() + "\n"
	}

	s += "\n[Enter] to continue • [Esc] to cancel\n"
	return s
}

// options returns the entered values, falling back to the defaults for empty
// fields.
func (m initModel) options() initOptions {
	pick := func(i int, def string) string {
		if v := m.inputs[i].Value(); v != "" {
			return v
		}
		return def
	}
	return initOptions{
		ToolType:  pick(0, m.defaults.ToolType),
		RunType:   pick(1, m.defaults.RunType),
		Output:    pick(2, m.defaults.Output),
		Workspace: pick(3, m.defaults.Workspace),
	}
}

func RunInitTUI(defaults initOptions) (initOptions, bool) {
	p := tea.NewProgram(initialInitModel(defaults))
	m, err := p.Run()
	if err != nil {
		return initOptions{}, true
	}

	final := m.(initModel)
	if final.canceled {
		return initOptions{}, true
	}
	return final.options(), false
}
