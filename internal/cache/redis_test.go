package cache

import (
	"context"
	"testing"
)

func TestFormatKeyRounding(t *testing.T) {
	// queries within ~1m share an entry
	a := formatKey(37.4979280, 127.0275830)
	b := formatKey(37.4979281, 127.0275829)
	if a != b {
		t.Errorf("keys differ for near-identical coordinates: %q vs %q", a, b)
	}

	c := formatKey(37.4980, 127.0275830)
	if a == c {
		t.Errorf("keys collide for distinct coordinates: %q", a)
	}
}

func TestNoopStopCache(t *testing.T) {
	var c NoopStopCache
	stop, err := c.GetStop(context.Background(), 37.5, 127.0)
	if err != nil || stop != nil {
		t.Errorf("noop GetStop = %v, %v", stop, err)
	}
	if err := c.SetStop(context.Background(), 37.5, 127.0, nil); err != nil {
		t.Errorf("noop SetStop = %v", err)
	}
}
