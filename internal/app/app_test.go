package app_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/glassboxlabs/glasstrace/internal/app"
	"github.com/glassboxlabs/glasstrace/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GeminiAPIKey = ""
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNew_Validates(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	if _, err := app.New(cfg, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}

	broken := cfg
	broken.HTTPAddr = ""
	if _, err := app.New(broken, discardLogger()); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestApp_StartAndShutdown(t *testing.T) {
	t.Parallel()

	application, err := app.New(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- application.Start()
	}()

	// Give the listener a moment to bind before asking it to stop.
	time.Sleep(50 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case err := <-serverErrCh:
		if err != nil {
			t.Fatalf("server exited with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
