package datasource

import (
	"strings"
	"testing"
)

func TestBuildAreaQueryZoomTiers(t *testing.T) {
	bounds := [4]float64{9.0, 52.0, 9.1, 52.1}

	low := buildAreaQuery(bounds, 2)
	if strings.Contains(low, `way["highway"`) {
		t.Error("expected no roads below zoom 5")
	}

	mid := buildAreaQuery(bounds, 7)
	if !strings.Contains(mid, `motorway|trunk"`) {
		t.Error("expected major roads only at zoom 5-9")
	}
	if strings.Contains(mid, `secondary|tertiary`) {
		t.Error("expected no secondary/tertiary roads below zoom 10")
	}

	detailed := buildAreaQuery(bounds, 16)
	if !strings.Contains(detailed, `way["building"]`) {
		t.Error("expected buildings at zoom 14+")
	}
}

func TestBuildAreaQueryUsesSouthWestNorthEastOrder(t *testing.T) {
	q := buildAreaQuery([4]float64{9.0, 52.0, 9.1, 52.1}, 14)
	if !strings.Contains(q, "(52.000000,9.000000,52.100000,9.100000)") {
		t.Errorf("expected bbox in south,west,north,east order, got: %s", q)
	}
}
