// Container healthcheck for the starscope binary: exits 0 when the API's
// liveness endpoint answers, nonzero otherwise. Kept as its own tiny binary
// so a scratch image needs no curl or shell.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	defaultPort    = "8090"
	livenessPath   = "/api/v1/health"
	requestTimeout = 2 * time.Second
)

func main() {
	if err := checkLiveness(os.Getenv("STARSCOPE_LISTEN_ADDR")); err != nil {
		os.Exit(1)
	}
}

func checkLiveness(listenAddr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	url := "http://" + loopback(listenAddr) + livenessPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errStatus(resp.StatusCode)
	}
	return nil
}

type errStatus int

func (e errStatus) Error() string { return "unexpected status " + http.StatusText(int(e)) }

// loopback maps the server's bind address to one dialable from inside the
// same container: a bind-all or empty host becomes 127.0.0.1, the
// configured port is kept.
func loopback(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return net.JoinHostPort("127.0.0.1", defaultPort)
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
