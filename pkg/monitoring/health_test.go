package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker_Basic(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	status := hc.CheckHealth()
	if status.Status != StatusHealthy {
		t.Fatalf("expected healthy")
	}
}

func TestHealthChecker_DegradedWins(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	hc.AddCheck("meh", func() CheckResult { return CheckResult{Status: StatusDegraded} })
	if got := hc.CheckHealth().Status; got != StatusDegraded {
		t.Fatalf("expected degraded, got %s", got)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]string{"DATABASE_URL": ""})()
	if res.Status != StatusDegraded {
		t.Fatalf("expected degraded for missing config, got %q", res.Status)
	}
	res = ConfigurationHealthCheck(map[string]string{"DATABASE_URL": "postgres://x"})()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", res.Status)
	}
}

func TestHTTPServiceHealthCheck(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer s.Close()
	res := HTTPServiceHealthCheck("svc", s.URL)()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy")
	}
}
