package broadcast

// Handler receives messages published by other listeners.
type Handler func(Message)

// Channel is a named best-effort publish/subscribe endpoint. A listener
// never receives its own publications.
type Channel interface {
	Name() string
	Publish(msg Message) error
	// Subscribe registers handler and returns a function that removes it.
	Subscribe(handler Handler) func()
	Close() error
}

// Noop is the Channel used when no transport is available. Publishing
// succeeds and nothing is ever delivered.
type Noop struct {
	name string
}

// NewNoop returns a Noop channel.
func NewNoop(name string) *Noop {
	return &Noop{name: name}
}

func (noop *Noop) Name() string { return noop.name }

func (noop *Noop) Publish(Message) error { return nil }

func (noop *Noop) Subscribe(Handler) func() { return func() {} }

func (noop *Noop) Close() error { return nil }
