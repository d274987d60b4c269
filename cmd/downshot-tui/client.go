package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"downshot/internal/api"
	"downshot/pkg/geo"
	"downshot/pkg/version"
)

// client talks to a running downshot server.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *client) telemetry(ctx context.Context) (api.TelemetryResponse, error) {
	var out api.TelemetryResponse
	err := c.do(ctx, http.MethodGet, "/api/telemetry", nil, &out, http.StatusOK)
	return out, err
}

func (c *client) mission(ctx context.Context) (api.MissionResponse, error) {
	var out api.MissionResponse
	err := c.do(ctx, http.MethodGet, "/api/mission", nil, &out, http.StatusOK)
	return out, err
}

func (c *client) latestLog(ctx context.Context) (string, error) {
	var out map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/log/latest", nil, &out, http.StatusOK); err != nil {
		return "", err
	}
	return out["log"], nil
}

func (c *client) setTarget(ctx context.Context, p geo.Point) (api.MissionResponse, error) {
	body := api.TargetRequest{Lat: &p.Lat, Lon: &p.Lon}
	var out api.MissionResponse
	err := c.do(ctx, http.MethodPost, "/api/mission/target", body, &out, http.StatusOK)
	return out, err
}

// start and reset answer 409 when the orchestrator ignored the request;
// the body still carries the status.
func (c *client) start(ctx context.Context) (api.MissionResponse, error) {
	var out api.MissionResponse
	err := c.do(ctx, http.MethodPost, "/api/mission/start", nil, &out, http.StatusAccepted, http.StatusConflict)
	return out, err
}

func (c *client) reset(ctx context.Context) (api.MissionResponse, error) {
	var out api.MissionResponse
	err := c.do(ctx, http.MethodPost, "/api/mission/reset", nil, &out, http.StatusOK, http.StatusConflict)
	return out, err
}

func (c *client) clearTrail(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/map/trail", nil, nil, http.StatusNoContent)
}

func (c *client) do(ctx context.Context, method, path string, in, out any, accept ...int) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		var apiErr map[string]string
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr["error"] != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr["error"])
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
