package media

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Change is delivered to listeners when match state of a media query flips.
type Change struct {
	Media   string
	Matches bool
}

// Listener receives media query match transitions.
type Listener func(Change)

// Oracle answers whether media query currently matches and accepts
// subscriptions for its future transitions.
type Oracle interface {
	Matches(query string) bool
	Subscribe(query string, fn Listener) uuid.UUID
	Unsubscribe(id uuid.UUID) bool
}

type subscription struct {
	id    uuid.UUID
	query string
	fn    Listener
}

// Environment is an Oracle evaluating queries against a viewport which can
// be changed with Update. Listeners are called synchronously from Update.
// NOTE: presently not to be used concurrently!
type Environment struct {
	log     *zap.Logger
	vp      Viewport
	queries map[string]QueryList
	subs    []subscription
}

var _ Oracle = (*Environment)(nil)

// NewEnvironment creates oracle for the initial viewport.
func NewEnvironment(vp Viewport, log *zap.Logger) *Environment {
	if log == nil {
		log = zap.NewNop()
	}
	return &Environment{
		log:     log.Named("media"),
		vp:      vp.normalized(),
		queries: make(map[string]QueryList),
	}
}

// Viewport returns current viewport.
func (e *Environment) Viewport() Viewport {
	return e.vp
}

// Matches reports whether query matches current viewport.
func (e *Environment) Matches(query string) bool {
	return e.query(query).Evaluate(e.vp)
}

// Subscribe registers fn to be called on every transition of query match
// state. Registrations are not deduplicated. Nil fn is ignored and
// uuid.Nil returned.
func (e *Environment) Subscribe(query string, fn Listener) uuid.UUID {
	if fn == nil {
		return uuid.Nil
	}
	id := uuid.New()
	e.subs = append(e.subs, subscription{id: id, query: query, fn: fn})
	e.log.Debug("Listener added", zap.String("media", query), zap.Stringer("id", id))
	return id
}

// Unsubscribe removes previously registered listener.
func (e *Environment) Unsubscribe(id uuid.UUID) bool {
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			e.log.Debug("Listener removed", zap.String("media", s.query), zap.Stringer("id", id))
			return true
		}
	}
	return false
}

// Listeners returns number of registered listeners.
func (e *Environment) Listeners() int {
	return len(e.subs)
}

// Update switches to the new viewport and notifies listeners of every
// subscribed query whose match state changed, in subscription order.
// Returns number of notifications delivered.
func (e *Environment) Update(vp Viewport) int {
	prev := e.vp
	e.vp = vp.normalized()

	// listeners may (un)subscribe while being notified
	subs := append([]subscription(nil), e.subs...)

	type state struct{ was, now bool }
	states := make(map[string]state)
	for _, s := range subs {
		if _, ok := states[s.query]; ok {
			continue
		}
		ql := e.query(s.query)
		states[s.query] = state{was: ql.Evaluate(prev), now: ql.Evaluate(e.vp)}
	}

	notified := 0
	for _, s := range subs {
		st := states[s.query]
		if st.was == st.now {
			continue
		}
		e.log.Debug("Media query changed", zap.String("media", s.query), zap.Bool("matches", st.now))
		s.fn(Change{Media: s.query, Matches: st.now})
		notified++
	}
	return notified
}

func (e *Environment) query(text string) QueryList {
	if ql, ok := e.queries[text]; ok {
		return ql
	}
	ql := Parse(text)
	e.queries[text] = ql
	return ql
}
