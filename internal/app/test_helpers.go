package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/shell"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates a new app instance for system testing. Commands go to
// the given shell runner instead of the operating system.
func SetupAppTest(t *testing.T, cfg *Config, loader config.Loader, sh shell.Runner, modules ...registry.Module) (*App, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, loader, modules...)
	if sh != nil {
		testApp.shell = sh
	}

	t.Cleanup(func() {
		if os.Getenv("WHEELGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
