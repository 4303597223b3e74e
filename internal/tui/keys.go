package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Submit key.Binding
	Poll   key.Binding
	Export key.Binding
	Accept key.Binding
	Back   key.Binding
	Scroll key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "plan tour")),
		Poll:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "check now")),
		Export: key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "export")),
		Accept: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "complete city")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Scroll: key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp 实现 help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Poll, k.Export, k.Back, k.Quit}
}

// FullHelp 实现 help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Accept, k.Poll},
		{k.Export, k.Scroll, k.Back, k.Quit},
	}
}

// sync 根据当前状态启用或禁用按键
func (k *keyMap) sync(loading, hasResult, polling bool) {
	k.Submit.SetEnabled(!loading)
	k.Accept.SetEnabled(!loading)
	k.Poll.SetEnabled(polling)
	k.Export.SetEnabled(hasResult)
	k.Scroll.SetEnabled(hasResult)
}
