// Package notify routes user-facing notifications through one gateway so
// messages can be filtered or rewritten without touching call sites.
package notify

import "sync"

// Severity of a notification.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// Severities lists every channel the gateway carries.
var Severities = []Severity{SeverityError, SeverityWarning, SeverityInfo}

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Func delivers a message with optional action labels and returns the
// chosen action, or "" when none was chosen.
type Func func(message string, actions ...string) string

// Discard drops the message.
func Discard(string, ...string) string { return "" }

// Gateway holds the current delivery function of each severity. Sinks
// must not block; the caller's control flow never waits on the user.
type Gateway struct {
	mu    sync.RWMutex
	funcs [3]Func
}

// NewGateway creates a gateway with a delivery function per severity. Nil
// functions are replaced with Discard.
func NewGateway(errorFn, warningFn, infoFn Func) *Gateway {
	g := &Gateway{}
	for i, fn := range []Func{errorFn, warningFn, infoFn} {
		if fn == nil {
			fn = Discard
		}
		g.funcs[i] = fn
	}
	return g
}

// Func returns the current delivery function for sev.
func (g *Gateway) Func(sev Severity) Func {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.funcs[sev]
}

// Replace installs fn for sev and returns the previous function.
func (g *Gateway) Replace(sev Severity, fn Func) Func {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.funcs[sev]
	g.funcs[sev] = fn
	return prev
}

// Notify delivers message on the sev channel.
func (g *Gateway) Notify(sev Severity, message string, actions ...string) string {
	return g.Func(sev)(message, actions...)
}

func (g *Gateway) Error(message string, actions ...string) string {
	return g.Notify(SeverityError, message, actions...)
}

func (g *Gateway) Warning(message string, actions ...string) string {
	return g.Notify(SeverityWarning, message, actions...)
}

func (g *Gateway) Info(message string, actions ...string) string {
	return g.Notify(SeverityInfo, message, actions...)
}
