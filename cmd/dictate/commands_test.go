package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// validatorServer answers with needs_clarification until the request carries
// the clarification marker or is an override.
type validatorServer struct {
	mu        sync.Mutex
	remaining int
	requests  []map[string]any
}

func (v *validatorServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)

	v.mu.Lock()
	v.requests = append(v.requests, req)
	v.remaining--
	remaining := v.remaining
	v.mu.Unlock()

	status, feedback := "needs_clarification", `"Add symptom duration"`
	text, _ := req["dictationText"].(string)
	if strings.Contains(text, "[Clarification]") {
		status, feedback = "appropriate", "null"
	}
	fmt.Fprintf(w, `{"success":true,"validationResult":{"validationStatus":%q,"complianceScore":70,"feedback":%s,
		"suggestedCPTCodes":[{"code":"72148","description":"MRI lumbar spine"}],"suggestedICD10Codes":[]},
		"trialInfo":{"validationsRemaining":%d}}`, status, feedback, remaining)
}

func writeConfig(t *testing.T, validatorURL string, credits int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "intake.toml")
	content := fmt.Sprintf(`
[capture]
recognizer = "mock"
restart_delay = "1ms"

[validator]
base_url = %q
path = "/api/orders/validate/trial"

[credits]
backend = "file"
path = %q
key = "validationsRemaining"
`, validatorURL, filepath.Join(dir, "credits"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if credits >= 0 {
		out, err := runCLI(t, "--config", path, "credits", "set", fmt.Sprint(credits))
		if err != nil {
			t.Fatalf("seed credits: %v (%s)", err, out)
		}
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreditsCommand(t *testing.T) {
	path := writeConfig(t, "http://127.0.0.1:0", 3)

	out, err := runCLI(t, "--config", path, "credits")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "3 validations remaining") {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := runCLI(t, "--config", path, "credits", "set", "-1"); err == nil {
		t.Error("expected negative count to be rejected")
	}
}

func TestValidateCommand_ClarificationThenAccept(t *testing.T) {
	v := &validatorServer{remaining: 5}
	srv := httptest.NewServer(v)
	defer srv.Close()
	path := writeConfig(t, srv.URL, 5)

	out, err := runCLI(t, "--config", path, "validate", "--clarify", "pain for six weeks", "MRI lumbar spine, low back pain")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	for _, want := range []string{"Attempt 1: needs_revision", "Feedback: Add symptom duration", "Attempt 2: compliant", "Ready for signature."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if len(v.requests) != 2 {
		t.Fatalf("expected 2 validator calls, got %d", len(v.requests))
	}
	if text := v.requests[1]["dictationText"].(string); !strings.HasSuffix(text, "[Clarification] pain for six weeks") {
		t.Errorf("unexpected clarified text %q", text)
	}

	out, _ = runCLI(t, "--config", path, "credits")
	if !strings.Contains(out, "3 validations remaining") {
		t.Errorf("expected server count persisted, got %q", out)
	}
}

func TestValidateCommand_Override(t *testing.T) {
	v := &validatorServer{remaining: 5}
	srv := httptest.NewServer(v)
	defer srv.Close()
	path := writeConfig(t, srv.URL, 5)

	out, err := runCLI(t, "--config", path, "validate", "--override", "MRI lumbar spine, low back pain")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Override 2: needs_revision") || !strings.Contains(out, "Ready for signature.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if override, _ := v.requests[1]["isOverrideValidation"].(bool); !override {
		t.Error("expected second request to be an override")
	}
}

func TestValidateCommand_NoCredits(t *testing.T) {
	v := &validatorServer{}
	srv := httptest.NewServer(v)
	defer srv.Close()
	path := writeConfig(t, srv.URL, 0)

	out, err := runCLI(t, "--config", path, "validate", "MRI lumbar spine, low back pain")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(out, "No validation credits remaining.") {
		t.Errorf("unexpected output %q", out)
	}
	if len(v.requests) != 0 {
		t.Errorf("expected no validator calls, got %d", len(v.requests))
	}
}

func TestCaptureCommand_Mock(t *testing.T) {
	path := writeConfig(t, "http://127.0.0.1:0", -1)

	out, err := runCLI(t, "--config", path, "capture", "--segments", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	want := "patient presents with acute lower back pain radiating to the left leg for three weeks"
	if !strings.Contains(out, want) {
		t.Errorf("expected joined dictation %q in output:\n%s", want, out)
	}
}

func TestCaptureCommand_GoogleNeedsAudio(t *testing.T) {
	path := writeConfig(t, "http://127.0.0.1:0", -1)

	_, err := runCLI(t, "--config", path, "capture", "--recognizer", "google")
	if err == nil || !strings.Contains(err.Error(), "--audio") {
		t.Errorf("expected missing audio error, got %v", err)
	}
}
