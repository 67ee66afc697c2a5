package opsdash

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/job"
)

func newService(t *testing.T, defs ...JobDefinition) *Service {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := DefaultConfig()
	cfg.EnvFiles = nil
	cfg.Jobs = defs
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestServiceLaunchValidation(t *testing.T) {
	svc := newService(t)
	var ve *job.ValidationError
	if _, err := svc.Launch(JobRequest{Job: "unknown"}); !errors.As(err, &ve) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, err := svc.Launch(JobRequest{}); !errors.As(err, &ve) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestServiceStopUnknown(t *testing.T) {
	svc := newService(t)
	if svc.Stop("nonexistent") {
		t.Fatal("stop of unknown run accepted")
	}
}

func TestServiceHandlerServes(t *testing.T) {
	svc := newService(t)
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}

func TestServiceCloseWithoutSink(t *testing.T) {
	svc := newService(t)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
