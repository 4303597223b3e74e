package tui

import "github.com/Zacy-Sokach/foodietour/internal/tour"

// StateMsg 控制器状态变化，由 main 通过 tea.Program.Send 投递
type StateMsg struct {
	State tour.State
}

type popularCitiesMsg struct {
	Cities []string
	Err    error
}

type submitDoneMsg struct {
	City string
	Err  error
}

type pollDoneMsg struct {
	Err error
}

type exportDoneMsg struct {
	Path string
	Err  error
}

type forgetDoneMsg struct {
	Err error
}
