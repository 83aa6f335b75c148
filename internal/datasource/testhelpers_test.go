package datasource

import (
	"os"
	"testing"
)

// requireIntegration skips tests that hit the real Overpass API unless
// explicitly opted into, mirroring the teacher's per-package integration
// gate.
func requireIntegration(t *testing.T) {
	if os.Getenv("TILEPYRAMID_INTEGRATION") != "1" {
		t.Skip("skipping integration test (set TILEPYRAMID_INTEGRATION=1 to run)")
	}
}
