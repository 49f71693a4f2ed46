// Package observability pushes structured events to Grafana Loki and records
// dispatch spans and counters through OpenTelemetry.
package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-faster/errors"
)

const pushTimeout = 5 * time.Second

type lokiClient struct {
	url        string
	username   string
	apiKey     string
	httpClient *http.Client
	enabled    bool
	appName    string
	// static labels added to every stream
	instanceID     string
	instanceRegion string
}

// Loki Push API format
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

var defaultClient *lokiClient

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Init configures the Loki client from GRAFANA_LOKI_URL, GRAFANA_LOKI_USER
// and GRAFANA_LOKI_API_KEY. Without all three, events are dropped and only
// process logs are written.
func Init() {
	c := &lokiClient{
		appName:        envOr("APP_ENV", "snaprpc-dev"),
		instanceID:     envOr("INSTANCE_ID", "local"),
		instanceRegion: envOr("INSTANCE_REGION", "local"),
	}

	url := os.Getenv("GRAFANA_LOKI_URL")
	c.username = os.Getenv("GRAFANA_LOKI_USER")
	c.apiKey = os.Getenv("GRAFANA_LOKI_API_KEY")
	if url == "" || c.username == "" || c.apiKey == "" {
		log.Println("Loki not configured, event push disabled")
		defaultClient = c
		return
	}

	c.url = url + "/loki/api/v1/push"
	c.httpClient = &http.Client{Timeout: pushTimeout}
	c.enabled = true
	defaultClient = c
	log.Printf("Loki client initialized (app=%s)", c.appName)
}

// Push sends one event asynchronously. It never blocks the caller.
func Push(labels map[string]string, data map[string]any) {
	c := defaultClient
	if c == nil || !c.enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := c.push(ctx, labels, data); err != nil {
			log.Printf("Loki: %v", err)
		}
	}()
}

func (c *lokiClient) push(ctx context.Context, labels map[string]string, data map[string]any) error {
	stream := map[string]string{
		"app":      c.appName,
		"instance": c.instanceID,
		"region":   c.instanceRegion,
	}
	for k, v := range labels {
		stream[k] = v
	}

	line, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	body, err := json.Marshal(lokiPushRequest{Streams: []lokiStream{{
		Stream: stream,
		Values: [][]string{{strconv.FormatInt(time.Now().UnixNano(), 10), string(line)}},
	}}})
	if err != nil {
		return errors.Wrap(err, "marshal push request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.SetBasicAuth(c.username, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// event pushes data under the given type and level labels. extra labels are
// added to the stream; errMsg, when set, is added to the data.
func event(kind, level string, extra map[string]string, data map[string]any, errMsg string) {
	labels := map[string]string{"type": kind, "level": level}
	for k, v := range extra {
		labels[k] = v
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	Push(labels, data)
}

// LogMethodCall logs one dispatched permitted method.
func LogMethodCall(requestID, origin, method string, durationMs int64, status, errMsg string) {
	level := "info"
	if status == "error" {
		level = "error"
	}
	event("dispatch", level, map[string]string{"method": method, "status": status}, map[string]any{
		"request_id":  requestID,
		"origin":      origin,
		"method":      method,
		"duration_ms": durationMs,
		"status":      status,
	}, errMsg)
}

// LogMerge logs the branch a snap permission merge took.
func LogMerge(requestID, origin, branch string, snapIDs []string, errMsg string) {
	level := "info"
	if errMsg != "" {
		level = "warn"
	}
	event("permission_merge", level, map[string]string{"branch": branch}, map[string]any{
		"request_id": requestID,
		"origin":     origin,
		"branch":     branch,
		"snap_ids":   snapIDs,
	}, errMsg)
}

// LogError logs an error with the operation it came from.
func LogError(op string, err error) {
	event("error", "error", nil, map[string]any{"context": op}, fmt.Sprintf("%v", err))
}

// LogSecurityEvent logs an access-control event, e.g. a non-snap origin
// calling a snap-only method.
func LogSecurityEvent(requestID, origin, name string, details map[string]any) {
	data := map[string]any{
		"request_id": requestID,
		"origin":     origin,
		"event":      name,
	}
	for k, v := range details {
		data[k] = v
	}
	event("security", "warn", nil, data, "")
}
