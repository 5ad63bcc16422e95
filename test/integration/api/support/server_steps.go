package support

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/pixel-revival/revive/internal/server"
)

func newMux(srv *server.Server) *http.ServeMux {
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	return mux
}

// RegisterServerSteps wires the server lifecycle and plain HTTP steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the restoration server is running$`, testCtx.theRestorationServerIsRunning)
	sc.Step(`^the restoration server allows (\d+) requests? per minute$`,
		testCtx.theRestorationServerAllowsRequestsPerMinute)
	sc.Step(`^I request "(GET|POST)" "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the stage list should include "([^"]*)"$`, testCtx.theStageListShouldInclude)
}

func (testCtx *TestContext) theRestorationServerIsRunning() error {
	if testCtx.HTTPServer != nil {
		return nil
	}
	return testCtx.StartServer(server.RateLimitConfig{})
}

func (testCtx *TestContext) theRestorationServerAllowsRequestsPerMinute(limit int) error {
	if testCtx.HTTPServer != nil {
		return fmt.Errorf("server already running, rate limit must be set before start")
	}
	return testCtx.StartServer(server.RateLimitConfig{RequestsPerMinute: limit})
}

func (testCtx *TestContext) iRequest(method, path string) error {
	return testCtx.doRequest(method, path, "", nil)
}

// doRequest issues a request against the running test server and records
// the response.
func (testCtx *TestContext) doRequest(method, path, contentType string, body io.Reader) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("no server running")
	}

	req, err := http.NewRequest(method, testCtx.HTTPServer.URL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	testCtx.recordResponse(resp.StatusCode, data)
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d (body: %s)",
			expected, testCtx.LastStatusCode, truncate(testCtx.LastBody, 200))
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldBe(field, expected string) error {
	if testCtx.LastJSON == nil {
		return fmt.Errorf("last response was not a JSON object: %s", truncate(testCtx.LastBody, 200))
	}
	value, ok := testCtx.LastJSON[field]
	if !ok {
		return fmt.Errorf("response has no field %q", field)
	}
	if got := fmt.Sprintf("%v", value); got != expected {
		return fmt.Errorf("expected field %q to be %q, got %q", field, expected, got)
	}
	return nil
}

func (testCtx *TestContext) theStageListShouldInclude(stage string) error {
	if testCtx.LastJSON == nil {
		return fmt.Errorf("last response was not a JSON object")
	}
	stages, ok := testCtx.LastJSON["stages"].([]interface{})
	if !ok {
		return fmt.Errorf("response has no stages list")
	}
	for _, s := range stages {
		if s == stage {
			return nil
		}
	}
	return fmt.Errorf("stage %q not in %v", stage, stages)
}

func truncate(data []byte, n int) string {
	s := strings.TrimSpace(string(data))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
