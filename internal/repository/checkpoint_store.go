package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	"FuturesHist/pkg/cache"
)

// Leading byte of a stored checkpoint.
const (
	encodingJSON byte = 'j'
	encodingZstd byte = 'z'
)

// CheckpointStore keeps completed series results in a cache backend.
type CheckpointStore struct {
	cache    cache.Service
	ttl      time.Duration
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

func NewCheckpointStore(c cache.Service, ttl time.Duration, compress bool) (*CheckpointStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &CheckpointStore{cache: c, ttl: ttl, compress: compress, enc: enc, dec: dec}, nil
}

// CheckpointKeyString renders key as a cache key.
func CheckpointKeyString(key domrepo.CheckpointKey) string {
	return cache.GenerateKeyWithParams("ckpt",
		key.Symbol, key.Period, key.Series,
		key.Window.Start.UnixMilli(), key.Window.End.UnixMilli())
}

func (s *CheckpointStore) Load(ctx context.Context, key domrepo.CheckpointKey) (*models.SeriesResult, error) {
	b, err := s.cache.GetBytes(ctx, CheckpointKeyString(key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return s.decode(b)
}

func (s *CheckpointStore) Save(ctx context.Context, key domrepo.CheckpointKey, res *models.SeriesResult) error {
	b, err := s.encode(res)
	if err != nil {
		return err
	}
	if err := s.cache.SetBytes(ctx, CheckpointKeyString(key), b, s.ttl); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) encode(res *models.SeriesResult) ([]byte, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	if !s.compress {
		return append([]byte{encodingJSON}, raw...), nil
	}
	return s.enc.EncodeAll(raw, []byte{encodingZstd}), nil
}

func (s *CheckpointStore) decode(b []byte) (*models.SeriesResult, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("decode checkpoint: empty value")
	}
	raw := b[1:]
	switch b[0] {
	case encodingJSON:
	case encodingZstd:
		var err error
		if raw, err = s.dec.DecodeAll(raw, nil); err != nil {
			return nil, fmt.Errorf("decompress checkpoint: %w", err)
		}
	default:
		return nil, fmt.Errorf("decode checkpoint: unknown encoding %q", b[0])
	}

	var res models.SeriesResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &res, nil
}

var _ domrepo.Checkpointer = (*CheckpointStore)(nil)
