package player

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/genricoloni/mpdpanel/internal/domain"
)

var errNotConnected = errors.New("not connected")

// classify wraps err with the domain category. Transport failures are
// ConnectionFailure; anything the server answered with is CommandRejected.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %s: %w", domain.ErrConnectionFailure, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrCommandRejected, op, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, errNotConnected) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
