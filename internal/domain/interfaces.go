package domain

// MessageSink receives TaskMessages from background work. Implementations
// must never block the caller.
type MessageSink interface {
	Post(msg TaskMessage)
}

// PageCursor is supplied by the presentation layer to answer which page the
// user is currently looking at (1-indexed).
type PageCursor interface {
	CurrentPage() int
}

// PageCursorFunc adapts a plain function to PageCursor.
type PageCursorFunc func() int

// CurrentPage implements PageCursor.
func (f PageCursorFunc) CurrentPage() int { return f() }
