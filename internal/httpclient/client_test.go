package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestNew_AppliesConfig(t *testing.T) {
	c := New(DefaultConfig())
	if c.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.Transport)
	}
	if tr.MaxIdleConnsPerHost != 10 {
		t.Errorf("expected 10 idle conns per host, got %d", tr.MaxIdleConnsPerHost)
	}
}

func TestWithTimeout(t *testing.T) {
	cfg := WithTimeout(5 * time.Second)
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Timeout)
	}
	if cfg.ResponseHeader != 5*time.Second {
		t.Errorf("expected response header timeout capped at 5s, got %v", cfg.ResponseHeader)
	}

	if WithTimeout(0).Timeout != DefaultConfig().Timeout {
		t.Error("expected zero to keep the default timeout")
	}
}
