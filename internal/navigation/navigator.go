// Package navigation models moving the client to another surface.
package navigation

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/domain"
	"github.com/spec-kit/marketplace-session/internal/events"
)

// Target is a same-origin location plus the reason for going there.
type Target struct {
	Path   string
	Query  url.Values
	Reason domain.NavigationReason
}

// To builds a target for path.
func To(path string, reason domain.NavigationReason) Target {
	return Target{Path: path, Reason: reason}
}

// WithError returns a copy of t carrying code in the "error" query parameter.
func (t Target) WithError(code string) Target {
	q := url.Values{}
	for k, v := range t.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("error", code)
	t.Query = q
	return t
}

// String renders the location.
func (t Target) String() string {
	if len(t.Query) == 0 {
		return t.Path
	}
	sep := "?"
	if strings.Contains(t.Path, "?") {
		sep = "&"
	}
	return t.Path + sep + t.Query.Encode()
}

// IsLocalPath reports whether p is an absolute path on the current origin.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// Navigator moves the client to a target.
type Navigator interface {
	Navigate(ctx context.Context, target Target)
}

// Capture records navigations. It is a Navigator on its own and also the sink
// of a ContextNavigator for the request it was attached to.
type Capture struct {
	mu      sync.Mutex
	targets []Target
}

// Navigate records target.
func (c *Capture) Navigate(_ context.Context, target Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets = append(c.targets, target)
}

// Targets returns every recorded navigation in order.
func (c *Capture) Targets() []Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Target(nil), c.targets...)
}

// Last returns the most recent navigation.
func (c *Capture) Last() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.targets) == 0 {
		return Target{}, false
	}
	return c.targets[len(c.targets)-1], true
}

type captureKey struct{}

// WithCapture attaches a fresh Capture to ctx.
func WithCapture(ctx context.Context) (context.Context, *Capture) {
	c := &Capture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

func captureFrom(ctx context.Context) *Capture {
	c, _ := ctx.Value(captureKey{}).(*Capture)
	return c
}

// ContextNavigator delivers navigations to the Capture carried by ctx and
// announces them on the dispatcher.
type ContextNavigator struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewContextNavigator constructs a navigator.
func NewContextNavigator(dispatcher events.Dispatcher, logger *zap.Logger) *ContextNavigator {
	return &ContextNavigator{dispatcher: dispatcher, logger: logger}
}

// Navigate implements Navigator.
func (n *ContextNavigator) Navigate(ctx context.Context, target Target) {
	if c := captureFrom(ctx); c != nil {
		c.Navigate(ctx, target)
	} else {
		n.logger.Debug("navigation outside a request", zap.String("target", target.String()))
	}

	if n.dispatcher == nil {
		return
	}
	event := events.NewEvent(events.EventNavigated, events.NavigatedPayload{
		Target: target.String(),
		Reason: target.Reason,
	})
	if err := n.dispatcher.Publish(ctx, event); err != nil {
		n.logger.Warn("navigated event handlers failed", zap.Error(err))
	}
}
