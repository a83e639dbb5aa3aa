// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package views

import (
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sentinel-tui/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ModeDark)
}

func press(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func typeText(v View, s string) View {
	for _, r := range s {
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return v
}

// run executes cmd, expanding batches, and returns the produced messages.
// Spinner frames are dropped. Never pass it focus or blink commands; they
// sleep.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			msgs []tea.Msg
		)
		for _, c := range msg {
			wg.Add(1)
			go func(c tea.Cmd) {
				defer wg.Done()
				out := run(c)
				mu.Lock()
				msgs = append(msgs, out...)
				mu.Unlock()
			}(c)
		}
		wg.Wait()
		return msgs
	case spinner.TickMsg:
		return nil
	default:
		return []tea.Msg{msg}
	}
}

// only returns the single message of type T in msgs.
func only[T tea.Msg](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	var found []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			found = append(found, v)
		}
	}
	require.Len(t, found, 1, "messages: %#v", msgs)
	return found[0]
}

// fakeScheduler records armed timers instead of sleeping.
type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	armed  []func(time.Time) tea.Msg
}

func (s *fakeScheduler) schedule(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.armed = append(s.armed, fn)
	return nil
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

// fire pops the oldest armed timer and returns its message.
func (s *fakeScheduler) fire(t *testing.T) tea.Msg {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.armed, "no timer armed")
	fn := s.armed[0]
	s.armed = s.armed[1:]
	return fn(time.Now())
}
