package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

// These run against a live server: E2E_BASE_URL=http://localhost:8080 go test ./deployments/localdev/e2e

func baseURL(t *testing.T) string {
	v := os.Getenv("E2E_BASE_URL")
	if v == "" {
		t.Skip("E2E_BASE_URL not set")
	}
	return v
}

var client = &http.Client{Timeout: 10 * time.Second}

func call(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Roles", "admin")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthAndMetrics(t *testing.T) {
	b := baseURL(t)
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		if code := call(t, http.MethodGet, b+path, nil, nil); code != 200 {
			t.Fatalf("%s status=%d", path, code)
		}
	}
}

func TestMenuAndBlockRoundTrip(t *testing.T) {
	b := baseURL(t)

	var menu struct {
		ID             int64 `json:"id"`
		ClientActionID int64 `json:"client_action_id"`
	}
	name := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	if code := call(t, http.MethodPost, b+"/api/v1/menus", map[string]any{"name": name}, &menu); code != 201 {
		t.Fatalf("create menu status=%d", code)
	}
	defer call(t, http.MethodDelete, fmt.Sprintf("%s/api/v1/menus/%d", b, menu.ID), nil, nil)

	var block struct {
		ID int64 `json:"id"`
	}
	model := os.Getenv("E2E_MODEL")
	if model == "" {
		model = "crm.lead"
	}
	in := map[string]any{
		"name":             "Records",
		"type":             "tile",
		"client_action_id": menu.ClientActionID,
		"model_name":       model,
		"operation":        "count",
	}
	if code := call(t, http.MethodPost, b+"/api/v1/blocks", in, &block); code != 201 {
		t.Fatalf("create block status=%d", code)
	}

	var vals map[string]any
	url := fmt.Sprintf("%s/api/v1/dashboard/actions/%d/vals", b, menu.ClientActionID)
	if code := call(t, http.MethodGet, url, nil, &vals); code != 200 {
		t.Fatalf("vals status=%d", code)
	}
	if len(vals) != 1 {
		t.Fatalf("expected one block result, got %d", len(vals))
	}

	if code := call(t, http.MethodDelete, fmt.Sprintf("%s/api/v1/blocks/%d", b, block.ID), nil, nil); code != 204 {
		t.Fatalf("delete block status=%d", code)
	}
}
