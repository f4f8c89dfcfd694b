package all

import (
	"testing"

	"github.com/gezibash/scs/internal/backend"
)

func TestAllRegistered(t *testing.T) {
	for _, name := range []string{"badger", "fs", "memory", "redis", "s3", "seaweedfs", "sqlite"} {
		if !backend.IsRegistered(name) {
			t.Errorf("backend %q not registered", name)
		}
		if backend.GetDefaults(name) == nil {
			t.Errorf("backend %q has no defaults", name)
		}
	}
}
