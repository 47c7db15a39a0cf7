// Package events provides an event emitter whose registrations can be canceled through io.Closer.
package events

import (
	"io"

	"github.com/chuckpreslar/emission"
)

// Emitter wraps emission.Emitter.
// On returns an io.Closer that cancels the registration.
type Emitter struct {
	*emission.Emitter
}

// NewEmitter creates an Emitter.
func NewEmitter() *Emitter {
	return &Emitter{Emitter: emission.NewEmitter()}
}

// On registers a listener invoked on every occurrence of event.
func (emitter *Emitter) On(event, listener interface{}) io.Closer {
	emitter.Emitter.On(event, listener)
	return closerFunc(func() { emitter.Emitter.Off(event, listener) })
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
