package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/sqlbridge/internal/notify"
	"github.com/joacominatel/sqlbridge/internal/server"
)

// ServerStateMsg reports a supervisor state transition.
type ServerStateMsg struct {
	State server.State
}

// NotificationMsg carries a user-facing message from the gateway.
type NotificationMsg struct {
	Severity notify.Severity
	Message  string
}

// eventBuffer bounds the events queued for the UI loop. Past it new events
// are dropped rather than blocking the sender.
const eventBuffer = 64

type sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards supervisor and gateway events to a running program, in
// the order they were sent. Events before Attach or after Close are dropped.
type Bridge struct {
	mu     sync.Mutex
	events chan tea.Msg
	done   chan struct{}
}

// Attach starts forwarding events to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.attach(p)
}

func (b *Bridge) attach(to sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.events != nil {
		return
	}
	b.events = make(chan tea.Msg, eventBuffer)
	b.done = make(chan struct{})
	go b.forward(to, b.events, b.done)
}

// forward is the single goroutine that talks to the program.
func (b *Bridge) forward(to sender, events <-chan tea.Msg, done <-chan struct{}) {
	for {
		select {
		case msg := <-events:
			to.Send(msg)
		case <-done:
			return
		}
	}
}

// Close stops forwarding. Queued events are discarded.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
}

// Send queues msg without blocking the caller. The supervisor calls in
// from its own goroutines and must never wait on the UI loop.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done == nil {
		return
	}
	select {
	case b.events <- msg:
	default:
	}
}

// ObserveState is a supervisor state observer.
func (b *Bridge) ObserveState(st server.State) {
	b.Send(ServerStateMsg{State: st})
}

// Sink returns a gateway func for sev. The TUI offers no action buttons,
// so no action is ever chosen.
func (b *Bridge) Sink(sev notify.Severity) notify.Func {
	return func(message string, _ ...string) string {
		b.Send(NotificationMsg{Severity: sev, Message: message})
		return ""
	}
}

// Gateway returns a gateway whose sinks post to the program.
func (b *Bridge) Gateway() *notify.Gateway {
	return notify.NewGateway(
		b.Sink(notify.SeverityError),
		b.Sink(notify.SeverityWarning),
		b.Sink(notify.SeverityInfo),
	)
}
