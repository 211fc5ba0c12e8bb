package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all watch key bindings.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Pause  key.Binding
	Resume key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "browse up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "browse down"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause"),
	),
	Resume: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "resume"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(terminal, paused, controllable bool) string {
	if terminal {
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	if !controllable {
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	if paused {
		return keyStyle.Render("r") + keyDescStyle.Render(":resume") + "  " +
			keyStyle.Render("c") + keyDescStyle.Render(":cancel") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
		keyStyle.Render("p") + keyDescStyle.Render(":pause") + "  " +
		keyStyle.Render("c") + keyDescStyle.Render(":cancel") + "  " +
		keyStyle.Render("q") + keyDescStyle.Render(":quit")
}
