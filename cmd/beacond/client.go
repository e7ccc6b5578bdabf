package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beaconhq/beacond/internal/config"
)

// daemonClient is a thin HTTP client against the local daemon's admin API,
// used by the CLI subcommands that don't want to duplicate kernel state.
type daemonClient struct {
	baseURL string
	http    *http.Client
}

func newDaemonClient(path string) (*daemonClient, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("beacond: load config: %w", err)
	}
	return &daemonClient{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.Daemon.Port),
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *daemonClient) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("beacond: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func (c *daemonClient) post(path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", body)
	if err != nil {
		return fmt.Errorf("beacond: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func decodeOrError(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("beacond: daemon returned %d: %s", resp.StatusCode, string(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
