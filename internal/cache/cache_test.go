package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/purelind/pycompat-check/internal/config"
)

func TestInitialize(t *testing.T) {
	DoCallbacks()

	for _, compress := range []bool{false, true} {
		c, err := Initialize(config.CacheConfig{Backend: "local", Compress: compress})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := c.(*Compressed); ok != compress {
			t.Errorf("compress=%v: got %T", compress, c)
		}
		c.Close()
	}

	_, err := Initialize(config.CacheConfig{Backend: "datastore"})
	if !errors.Is(err, ErrNoFactory) {
		t.Errorf("got %v, want ErrNoFactory", err)
	}
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()
	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	v := []byte("value")
	if err := c.Set(ctx, "k", v); err != nil {
		t.Fatal(err)
	}
	v[0] = 'X'
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	if string(got) != "value" {
		t.Errorf("stored value changed with the caller's slice: %q", got)
	}
}

func TestCompressed(t *testing.T) {
	ctx := context.Background()
	inner := NewLocal()
	c, err := NewCompressed(inner)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	value := bytes.Repeat([]byte(`{"status":"SUCCESS","details":null}`), 100)
	if err := c.Set(ctx, "k", value); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := inner.Get(ctx, "k")
	if len(raw) >= len(value) {
		t.Errorf("stored %d bytes for a %d byte value", len(raw), len(value))
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, value) {
		t.Error("round trip changed the value")
	}
	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("got ok=%v err=%v", ok, err)
	}

	inner.Set(ctx, "garbage", []byte("not zstd"))
	if _, _, err := c.Get(ctx, "garbage"); err == nil {
		t.Error("expected a decompression error")
	}
}

func TestJSON(t *testing.T) {
	ctx := context.Background()
	c := NewLocal()
	type entry struct {
		Status string         `json:"status"`
		Counts map[string]int `json:"counts"`
	}
	in := entry{Status: "SUCCESS", Counts: map[string]int{"py3": 1}}
	if err := SetJSON(ctx, c, "e", in); err != nil {
		t.Fatal(err)
	}
	var out entry
	ok, err := GetJSON(ctx, c, "e", &out)
	if err != nil || !ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}
	if !cmp.Equal(in, out) {
		t.Error(cmp.Diff(in, out))
	}
	if ok, err := GetJSON(ctx, c, "nope", &out); ok || err != nil {
		t.Errorf("got ok=%v err=%v", ok, err)
	}
}
