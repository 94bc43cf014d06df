package transport

import "github.com/momentics/aioloop/errs"

// Stack implements spec.md §4.9's pipeline stacking: an upper-layer
// constructor takes a lower Listener and a per-connection object
// factory, substitutes the lower listener's accept callback with its
// own, and re-fires the original accept callback once its own
// bookkeeping is wired in. Grounded on internal/websocket/upgrader.go's
// "substitute the listener's callbacks on accept" idiom, generalized
// from one hard-coded WebSocket upgrade into an arbitrary per-connection
// decorator.
//
// newConn is called once per accepted connection; its return value is
// opaque to Stack (e.g. a *TapState) and is not otherwise interpreted.
func Stack(lower Listener, newConn func(Conn) any) Listener {
	s := &stackedListener{lower: lower, newConn: newConn}
	lower.OnAccept(s.onLowerAccept)
	return s
}

// stackedListener re-publishes the lower Listener's vtable, substituting
// only OnAccept's wiring; everything else (Open/Listen/Close/State/Addr)
// delegates straight through, since stacking never changes how the
// socket itself is opened or bound.
type stackedListener struct {
	lower   Listener
	newConn func(Conn) any
	upper   func(Conn)

	perConn map[Conn]any
}

func (s *stackedListener) Open() errs.Kind             { return s.lower.Open() }
func (s *stackedListener) Listen(a Sockaddr) errs.Kind { return s.lower.Listen(a) }
func (s *stackedListener) Close() errs.Kind            { return s.lower.Close() }
func (s *stackedListener) State() ListenerState        { return s.lower.State() }
func (s *stackedListener) Addr() Sockaddr              { return s.lower.Addr() }

func (s *stackedListener) OnAccept(cb func(Conn)) { s.upper = cb }

func (s *stackedListener) onLowerAccept(c Conn) {
	if s.newConn != nil {
		obj := s.newConn(c)
		if s.perConn == nil {
			s.perConn = make(map[Conn]any)
		}
		s.perConn[c] = obj
	}
	if s.upper != nil {
		s.upper(c)
	}
}

// TapState is NewTapLayer's per-connection object: a byte counter. Stands
// in for where a TLS layer's per-connection crypto state would live —
// spec.md explicitly keeps any specific TLS binding out of scope, so the
// stacking mechanism here is exercised by a layer that needs no external
// crypto library.
type TapState struct {
	BytesRead    int
	BytesWritten int
}

// NewTapLayer stacks a byte-counting pass-through layer over lower. Every
// accepted connection gets its own TapState, whose read counter is
// installed as the connection's OnRead callback before the upper accept
// callback runs. A Conn holds a single OnRead callback, so an OnRead set
// by the upper accept callback replaces the counter and it stops counting.
// BytesWritten is never updated.
func NewTapLayer(lower Listener) Listener {
	return Stack(lower, func(c Conn) any {
		state := &TapState{}
		c.OnRead(func(buf []byte, k errs.Kind) {
			state.BytesRead += len(buf)
		})
		return state
	})
}
