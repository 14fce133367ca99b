package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apihttp "github.com/Paintersrp/execo/internal/api/http"
	"github.com/Paintersrp/execo/internal/metrics"
)

var newAPIServer = apihttp.NewServer

// startStatusServer launches the HTTP status endpoint when addr is non-empty.
// The returned finish function shuts the server down and reports its error.
func startStatusServer(runCtx stdcontext.Context, ctx *context, addr string, stderr io.Writer) (func() error, error) {
	if addr == "" {
		return nil, nil
	}

	server, err := newAPIServer(apihttp.Config{
		Addr:     addr,
		Recorder: ctx.recorder,
		Registry: metrics.Registry(),
	})
	if err != nil {
		return nil, err
	}

	serverCtx, cancel := stdcontext.WithCancel(runCtx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(serverCtx)
	}()

	readyTimer := time.NewTimer(200 * time.Millisecond)
	defer readyTimer.Stop()
	select {
	case err := <-errCh:
		cancel()
		return nil, err
	case <-readyTimer.C:
	case <-runCtx.Done():
		cancel()
		err := <-errCh
		if err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			return nil, err
		}
		return nil, runCtx.Err()
	}

	fmt.Fprintf(stderr, "status endpoint listening on %s\n", server.Addr())
	return func() error {
		cancel()
		err := <-errCh
		if err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, nil
}
