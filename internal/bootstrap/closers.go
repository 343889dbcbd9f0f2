package bootstrap

import (
	"errors"
	"io"
)

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Closers releases resources in reverse order of registration.
type Closers []io.Closer

func (c *Closers) add(cl io.Closer) {
	*c = append(*c, cl)
}

func (c *Closers) addFunc(f func()) {
	c.add(closerFunc(func() error {
		f()
		return nil
	}))
}

// Close closes everything and joins the errors.
func (c Closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
