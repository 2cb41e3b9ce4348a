package notify

import (
	"log/slog"
	"sync"
)

// Filter decides whether a message is delivered. True allows it.
type Filter func(message string, sev Severity) bool

// Transformer rewrites a message before delivery.
type Transformer func(message string, sev Severity) string

// Interceptor wraps the gateway's delivery functions with a log, filter,
// transform chain. The originals are captured when the interceptor is
// created; Deactivate puts exactly those back.
type Interceptor struct {
	gateway   *Gateway
	logger    *slog.Logger
	originals [3]Func
	wrappers  [3]Func

	mu        sync.RWMutex
	active    bool
	filter    Filter
	transform Transformer
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithLogger logs every message seen by the wrappers at debug level.
func WithLogger(logger *slog.Logger) InterceptorOption {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// WithFilter sets the initial filter.
func WithFilter(f Filter) InterceptorOption {
	return func(i *Interceptor) {
		i.filter = f
	}
}

// WithTransformer sets the initial transformer.
func WithTransformer(t Transformer) InterceptorOption {
	return func(i *Interceptor) {
		i.transform = t
	}
}

// NewInterceptor captures g's current functions. It does not activate.
func NewInterceptor(g *Gateway, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{gateway: g}
	for _, opt := range opts {
		opt(i)
	}
	for _, sev := range Severities {
		i.originals[sev] = g.Func(sev)
		i.wrappers[sev] = i.wrap(sev, i.originals[sev])
	}
	return i
}

func (i *Interceptor) wrap(sev Severity, original Func) Func {
	return func(message string, actions ...string) string {
		i.mu.RLock()
		filter, transform := i.filter, i.transform
		i.mu.RUnlock()

		if i.logger != nil {
			i.logger.Debug("notification", "severity", sev.String(), "message", message)
		}
		if filter != nil && !filter(message, sev) {
			return ""
		}
		if transform != nil {
			message = transform(message, sev)
		}
		return original(message, actions...)
	}
}

// Activate installs the wrappers. It is a no-op when already active.
func (i *Interceptor) Activate() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.active {
		return
	}
	for _, sev := range Severities {
		i.gateway.Replace(sev, i.wrappers[sev])
	}
	i.active = true
}

// Deactivate restores the captured originals. It is a no-op when inactive.
func (i *Interceptor) Deactivate() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.active {
		return
	}
	for _, sev := range Severities {
		i.gateway.Replace(sev, i.originals[sev])
	}
	i.active = false
}

// Active reports whether the wrappers are installed.
func (i *Interceptor) Active() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.active
}

// SetFilter swaps the filter; nil allows everything.
func (i *Interceptor) SetFilter(f Filter) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.filter = f
}

// SetTransformer swaps the transformer; nil leaves messages unchanged.
func (i *Interceptor) SetTransformer(t Transformer) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.transform = t
}
