package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xagent-cli/xagent/internal/echovendor"
)

// startVendor serves an echo vendor for the duration of the test.
func startVendor(t *testing.T) *echovendor.Vendor {
	t.Helper()
	vendor := echovendor.New()
	t.Setenv("XAGENT_BASE_URL", vendor.Start())
	t.Setenv("XAGENT_MODEL", "echo-small")
	t.Cleanup(vendor.Close)
	return vendor
}

// TestRun_Complete prints the echoed text and finish reason.
func TestRun_Complete(t *testing.T) {
	startVendor(t)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"complete", "-log-level", "error", "hello", "world"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v (stderr: %s)", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "hello world\n") || !strings.Contains(stdout.String(), "[stop,") {
		t.Errorf("unexpected output %q", stdout.String())
	}
}

// TestRun_Stream prints deltas followed by the finish reason.
func TestRun_Stream(t *testing.T) {
	startVendor(t)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"stream", "-log-level", "error", "one two"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := stdout.String(); got != "one two\n[stop]\n" {
		t.Errorf("unexpected output %q", got)
	}
}

// TestRun_Models renders the vendor model list as a table.
func TestRun_Models(t *testing.T) {
	startVendor(t)
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), []string{"models", "-log-level", "error"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"ID", "echo-small", "echo-large"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, stdout.String())
		}
	}
}

// TestRun_ConfigFile reads the endpoint from YAML, with flags overriding it.
func TestRun_ConfigFile(t *testing.T) {
	vendor := startVendor(t)
	path := filepath.Join(t.TempDir(), "xagent.yaml")
	content := "base_url: http://127.0.0.1:1\nmodel: from-file\nretry:\n  max_retries: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XAGENT_MODEL", "")
	var stdout, stderr bytes.Buffer

	// XAGENT_BASE_URL points at the vendor and overrides the file.
	err := run(context.Background(), []string{"complete", "-config", path, "-log-level", "error", "hi"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	calls := vendor.Calls()
	if len(calls) != 1 || !strings.Contains(string(calls[0].Body), `"model":"from-file"`) {
		t.Errorf("expected the file model to be sent, got %+v", calls)
	}
}

// TestRun_EnvironmentLayer takes the static model list from XAGENT_MODELS,
// which has no flag of its own.
func TestRun_EnvironmentLayer(t *testing.T) {
	vendor := startVendor(t)
	t.Setenv("XAGENT_MODELS", "static-a, static-b")
	envFile := filepath.Join(t.TempDir(), "absent.env")
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), []string{"models", "-env-file", envFile, "-log-level", "error"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "static-b") || strings.Contains(stdout.String(), "echo-large") {
		t.Errorf("expected the static list, got:\n%s", stdout.String())
	}
	if len(vendor.Calls()) != 0 {
		t.Errorf("expected no vendor calls, got %d", len(vendor.Calls()))
	}
}

// TestRun_PromptAfterFlags joins every positional argument into the prompt.
func TestRun_PromptAfterFlags(t *testing.T) {
	vendor := startVendor(t)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"complete", "-log-level", "error", "-max-tokens", "64", "three", "word", "prompt"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	calls := vendor.Calls()
	if len(calls) != 1 || !strings.Contains(string(calls[0].Body), "three word prompt") {
		t.Errorf("expected the joined prompt to be sent, got %+v", calls)
	}
}

// TestRun_Errors covers usage and vendor failures.
func TestRun_Errors(t *testing.T) {
	vendor := startVendor(t)
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), nil, &stdout, &stderr); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), []string{"bogus"}, &stdout, &stderr); err == nil {
		t.Error("expected an unknown command error")
	}
	if err := run(context.Background(), []string{"complete", "-log-level", "error"}, &stdout, &stderr); err == nil {
		t.Error("expected a missing prompt error")
	}

	vendor.FailNext(400)
	if err := run(context.Background(), []string{"stream", "-log-level", "error", "hi"}, &stdout, &stderr); err == nil {
		t.Error("expected the stream error to be returned")
	}
}
