package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	wapcruntime "github.com/wippyai/wapc-runtime"
	"github.com/wippyai/wapc-runtime/engines/wazero"
	"github.com/wippyai/wapc-runtime/errors"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	module   wapcruntime.Module
	instance wapcruntime.Instance
	filename string
	history  []callRecord
	inputs   []textinput.Model
	focusIdx int
	state    modelState
}

type callRecord struct {
	operation string
	payload   string
	result    string
	err       error
}

type modelState int

const (
	stateInputCall modelState = iota
	stateShowResult
)

func newInteractiveModel(filename string) *interactiveModel {
	op := textinput.New()
	op.Prompt = "operation: "
	op.Placeholder = "echo"
	op.Width = 40
	op.Focus()

	payload := textinput.New()
	payload.Prompt = "payload:   "
	payload.Placeholder = "hello"
	payload.Width = 40

	return &interactiveModel{
		filename: filename,
		inputs:   []textinput.Model{op, payload},
		state:    stateInputCall,
	}
}

type loadedMsg struct {
	err      error
	module   wapcruntime.Module
	instance wapcruntime.Instance
}

type callResultMsg struct {
	record callRecord
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	ctx := context.Background()

	code, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	module, err := wazero.Engine().New(ctx, code, hostCall)
	if err != nil {
		return loadedMsg{err: err}
	}

	instance, err := module.Instantiate(ctx)
	if err != nil {
		module.Close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{module: module, instance: instance}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			ctx := context.Background()
			if m.instance != nil {
				m.instance.Close(ctx)
			}
			if m.module != nil {
				m.module.Close(ctx)
			}
			return m, tea.Quit

		case "enter":
			switch m.state {
			case stateInputCall:
				if m.inputs[0].Value() == "" {
					return m, nil
				}
				return m, m.callOperation

			case stateShowResult:
				m.state = stateInputCall
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = 0
				m.inputs[0].Focus()
			}

		case "tab":
			if m.state == stateInputCall {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			if m.state == stateShowResult {
				m.state = stateInputCall
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.module = msg.module
		m.instance = msg.instance

	case callResultMsg:
		m.history = append(m.history, msg.record)
		m.state = stateShowResult
	}

	if m.state == stateInputCall {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) callOperation() tea.Msg {
	ctx := context.Background()

	record := callRecord{
		operation: m.inputs[0].Value(),
		payload:   m.inputs[1].Value(),
	}

	if m.instance == nil {
		record.err = fmt.Errorf("module not loaded")
		return callResultMsg{record: record}
	}

	result, err := m.instance.Invoke(ctx, record.operation, []byte(record.payload))
	if err != nil {
		record.err = err
		return callResultMsg{record: record}
	}

	record.result = string(result)
	return callResultMsg{record: record}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}

	if m.instance == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("waPC Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateInputCall:
		b.WriteString("Invoke a guest operation:\n\n")
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter invoke • ctrl+c quit"))

	case stateShowResult:
		last := m.history[len(m.history)-1]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", opStyle.Render(last.operation)))
		if last.err != nil {
			if msg, ok := errors.GuestMessage(last.err); ok {
				b.WriteString(errorStyle.Render("Guest error: " + msg))
			} else {
				b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", last.err)))
			}
		} else {
			b.WriteString(resultStyle.Render(last.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • ctrl+c quit"))
	}

	if len(m.history) > 0 && m.state == stateInputCall {
		b.WriteString("\n\nHistory:\n")
		start := 0
		if len(m.history) > 5 {
			start = len(m.history) - 5
		}
		for _, rec := range m.history[start:] {
			status := resultStyle.Render("ok")
			if rec.err != nil {
				status = errorStyle.Render("err")
			}
			b.WriteString(fmt.Sprintf("  %s %s(%q)\n", status, opStyle.Render(rec.operation), rec.payload))
		}
	}

	return b.String()
}
