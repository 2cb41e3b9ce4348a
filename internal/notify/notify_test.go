package notify

import (
	"reflect"
	"strings"
	"testing"
)

type sink struct {
	messages []string
}

func (s *sink) fn(message string, actions ...string) string {
	s.messages = append(s.messages, message)
	if len(actions) > 0 {
		return actions[0]
	}
	return ""
}

func newTestGateway() (*Gateway, *sink, *sink, *sink) {
	e, w, i := &sink{}, &sink{}, &sink{}
	return NewGateway(e.fn, w.fn, i.fn), e, w, i
}

func TestGatewayRoutesBySeverity(t *testing.T) {
	g, e, w, i := newTestGateway()

	g.Error("boom")
	g.Warning("careful")
	if got := g.Info("hello", "Retry", "Cancel"); got != "Retry" {
		t.Errorf("Expected first action to be returned, got %q", got)
	}

	if len(e.messages) != 1 || len(w.messages) != 1 || len(i.messages) != 1 {
		t.Fatalf("Unexpected routing: error=%v warning=%v info=%v", e.messages, w.messages, i.messages)
	}
}

func TestNilSinkDiscards(t *testing.T) {
	g := NewGateway(nil, nil, nil)
	if got := g.Error("dropped", "OK"); got != "" {
		t.Errorf("Expected empty action, got %q", got)
	}
}

// deliver sends one message per severity, named after it.
func deliver(g *Gateway) {
	for _, sev := range Severities {
		g.Notify(sev, sev.String())
	}
}

// assertRouted checks that each sink holds exactly want, in order.
func assertRouted(t *testing.T, e, w, i *sink, want func(Severity) []string) {
	t.Helper()
	for sev, s := range map[Severity]*sink{SeverityError: e, SeverityWarning: w, SeverityInfo: i} {
		if !reflect.DeepEqual(s.messages, want(sev)) {
			t.Errorf("%s sink: expected %v, got %v", sev, want(sev), s.messages)
		}
	}
}

func TestInterceptorActivateDeactivateRoundTrip(t *testing.T) {
	g, e, w, i := newTestGateway()
	ic := NewInterceptor(g, WithTransformer(func(message string, _ Severity) string {
		return "wrapped " + message
	}))

	ic.Activate()
	ic.Activate()
	if !ic.Active() {
		t.Fatal("Expected interceptor active")
	}
	deliver(g)
	assertRouted(t, e, w, i, func(sev Severity) []string {
		return []string{"wrapped " + sev.String()}
	})

	ic.Deactivate()
	ic.Deactivate()
	if ic.Active() {
		t.Fatal("Expected interceptor inactive")
	}
	deliver(g)
	assertRouted(t, e, w, i, func(sev Severity) []string {
		return []string{"wrapped " + sev.String(), sev.String()}
	})
}

func TestDeactivateWithoutActivateIsNoop(t *testing.T) {
	g, e, w, i := newTestGateway()

	NewInterceptor(g, WithFilter(func(string, Severity) bool { return false })).Deactivate()

	deliver(g)
	assertRouted(t, e, w, i, func(sev Severity) []string {
		return []string{sev.String()}
	})
}

func TestFilterAndTransformer(t *testing.T) {
	g, e, w, _ := newTestGateway()

	ic := NewInterceptor(g,
		WithFilter(func(message string, sev Severity) bool {
			return !(sev == SeverityWarning && strings.Contains(message, "noisy"))
		}),
		WithTransformer(func(message string, sev Severity) string {
			return "[" + sev.String() + "] " + message
		}),
	)
	ic.Activate()

	g.Warning("noisy thing")
	g.Warning("real thing")
	if got := g.Error("bad", "Show log"); got != "Show log" {
		t.Errorf("Expected chosen action to pass through, got %q", got)
	}

	if len(w.messages) != 1 || w.messages[0] != "[warning] real thing" {
		t.Errorf("Unexpected warnings: %v", w.messages)
	}
	if len(e.messages) != 1 || e.messages[0] != "[error] bad" {
		t.Errorf("Unexpected errors: %v", e.messages)
	}

	ic.SetFilter(nil)
	ic.SetTransformer(nil)
	g.Warning("noisy again")
	if w.messages[len(w.messages)-1] != "noisy again" {
		t.Errorf("Expected unfiltered message, got %v", w.messages)
	}
}

func TestSuppressedMessageReturnsNoAction(t *testing.T) {
	g, e, _, _ := newTestGateway()
	filter, err := SuppressMatching([]string{`^ignore`})
	if err != nil {
		t.Fatalf("SuppressMatching failed: %v", err)
	}
	ic := NewInterceptor(g, WithFilter(filter))
	ic.Activate()

	if got := g.Error("ignore me", "OK"); got != "" {
		t.Errorf("Expected no action for suppressed message, got %q", got)
	}
	if len(e.messages) != 0 {
		t.Errorf("Expected nothing delivered, got %v", e.messages)
	}
}

func TestRewriteMatching(t *testing.T) {
	tr, err := RewriteMatching([]Rule{
		{Pattern: `password=\S+`, Replace: "password=***"},
		{Pattern: `^sqls: (.*)$`, Replace: "$1"},
	})
	if err != nil {
		t.Fatalf("RewriteMatching failed: %v", err)
	}
	got := tr("sqls: connect failed password=hunter2 host=db", SeverityError)
	want := "connect failed password=*** host=db"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	if _, err := RewriteMatching([]Rule{{Pattern: "("}}); err == nil {
		t.Error("Expected compile error")
	}
	if _, err := SuppressMatching([]string{"["}); err == nil {
		t.Error("Expected compile error")
	}
}
