package core

import (
	"github.com/dustin/go-broadcast"
)

// Observer receives a snapshot every time a node's tables are rendered.
// Observers never feed anything back into the routing state.
type Observer interface {
	Observe(s *Snapshot)
}

type ObserverFunc func(s *Snapshot)

func (f ObserverFunc) Observe(s *Snapshot) {
	f(s)
}

// LineObserver adapts a sink that accepts one line of text at a time.
type LineObserver func(line string)

func (f LineObserver) Observe(s *Snapshot) {
	for _, line := range s.Lines() {
		f(line)
	}
}

// Discard drops every snapshot.
var Discard Observer = ObserverFunc(func(*Snapshot) {})

// Trace fans snapshots out to any number of subscribers.
type Trace struct {
	broadcast.Broadcaster
}

func NewTrace(bufLen int) *Trace {
	return &Trace{
		Broadcaster: broadcast.NewBroadcaster(bufLen),
	}
}

func (t *Trace) Observe(s *Snapshot) {
	t.Submit(s)
}

// Subscribe returns a channel receiving every snapshot submitted after the call.
func (t *Trace) Subscribe(bufLen int) chan any {
	ch := make(chan any, bufLen)
	t.Register(ch)
	return ch
}

func (t *Trace) Unsubscribe(ch chan any) {
	t.Unregister(ch)
}
