package cache

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressed stores zstd-compressed values in another cache.
type Compressed struct {
	Cache
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewCompressed(c Cache) (*Compressed, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Compressed{Cache: c, enc: enc, dec: dec}, nil
}

func (c *Compressed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok, err := c.Cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	out, err := c.dec.DecodeAll(b, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decompress %s: %w", key, err)
	}
	return out, true, nil
}

func (c *Compressed) Set(ctx context.Context, key string, value []byte) error {
	return c.Cache.Set(ctx, key, c.enc.EncodeAll(value, nil))
}

func (c *Compressed) Close() error {
	c.dec.Close()
	if err := c.enc.Close(); err != nil {
		return err
	}
	return c.Cache.Close()
}
