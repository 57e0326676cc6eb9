package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// taskMsg carries a scheduler task into Update, which makes the bubbletea
// event loop the scheduler goroutine.
type taskMsg func()

type shellExitedMsg struct{}

// waitTask takes one task from the scheduler. It is re-armed after every
// task, so at most one task is in flight between the loop and Update.
func waitTask(tasks <-chan func(), done <-chan struct{}) tea.Cmd {
	if tasks == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case fn := <-tasks:
			return taskMsg(fn)
		case <-done:
			return nil
		}
	}
}

func waitExit(exited <-chan struct{}) tea.Cmd {
	if exited == nil {
		return nil
	}
	return func() tea.Msg {
		<-exited
		return shellExitedMsg{}
	}
}
