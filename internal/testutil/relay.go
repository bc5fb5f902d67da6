package testutil

import (
	"context"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Relay copies between left and right until either side finishes or ctx is
// done, then closes both.
func Relay(ctx context.Context, left, right net.Conn) error {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = left.Close()
			_ = right.Close()
		})
	}
	defer closeBoth()

	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		defer closeBoth()
		_, err := io.Copy(left, right)
		return err
	})
	g.Go(func() error {
		defer closeBoth()
		_, err := io.Copy(right, left)
		return err
	})

	return g.Wait()
}
