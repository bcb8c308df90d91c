package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// localMAC resolves the hardware address of the named interface, used to
// derive this node's PTP clock identity (IEEE 1588 EUI-48-based default).
func localMAC(ifaceName string) (net.HardwareAddr, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("interface %q: %w", ifaceName, err)
	}
	if len(iface.HardwareAddr) == 0 {
		return nil, fmt.Errorf("interface %q has no hardware address", ifaceName)
	}
	return iface.HardwareAddr, nil
}

// httpServe runs the node's HTTP façade until ctx is canceled, at which
// point it shuts the server down gracefully rather than reporting
// ErrServerClosed as a failure.
func httpServe(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler}

	errChan := make(chan error, 1)
	go func() { errChan <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
