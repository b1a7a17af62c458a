// Copyright 2025 The ner-model Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nutsam/ner-model/lib/extract"
)

// ResultCacheTTL is the default TTL for cached extraction results.
const ResultCacheTTL = 2 * time.Minute

// Cached wraps a pipeline with a TTL result cache keyed by the input texts
// and options. Concurrent identical requests are deduplicated.
type Cached struct {
	pipeline *Pipeline
	cache    *ttlcache.Cache[string, map[int]extract.Bucket]
	sfGroup  *singleflight.Group
	logger   *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCached wraps a pipeline with result caching. A nil logger disables
// logging.
func NewCached(p *Pipeline, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, map[int]extract.Bucket](ResultCacheTTL),
	)
	go cache.Start()

	return &Cached{
		pipeline: p,
		cache:    cache,
		sfGroup:  &singleflight.Group{},
		logger:   logger,
	}
}

// Extract returns cached buckets when the same texts and options were
// extracted within the TTL, running the pipeline otherwise.
func (c *Cached) Extract(ctx context.Context, texts []string, opts RunOptions) (map[int]extract.Bucket, error) {
	key := cacheKey(texts, opts)

	if item := c.cache.Get(key); item != nil {
		c.hits.Add(1)
		RecordCacheHit()
		c.logger.Debug("Result cache hit", zap.Int("num_texts", len(texts)))
		return item.Value(), nil
	}

	result, err, shared := c.sfGroup.Do(key, func() (any, error) {
		c.misses.Add(1)
		RecordCacheMiss()

		start := time.Now()
		buckets, err := c.pipeline.Extract(ctx, texts, opts)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, buckets, ttlcache.DefaultTTL)

		c.logger.Debug("Extraction completed and cached",
			zap.Int("num_texts", len(texts)),
			zap.Duration("duration", time.Since(start)))
		return buckets, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.logger.Debug("Singleflight hit for extraction request")
	}
	return result.(map[int]extract.Bucket), nil
}

// Stats returns hit and miss counts since creation.
func (c *Cached) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the cache janitor.
func (c *Cached) Close() {
	c.cache.Stop()
}

// cacheKey hashes the texts and options into a fixed-size key.
func cacheKey(texts []string, opts RunOptions) string {
	h := xxhash.New()
	if opts.UseBatch {
		_, _ = h.WriteString("b")
	}
	if opts.UseDelim {
		_, _ = h.WriteString("d")
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(opts.MaxLength))
	_, _ = h.Write(lenBuf[:])
	for i, text := range texts {
		_, _ = h.Write([]byte{byte(i >> 8), byte(i)})
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(text)
		_, _ = h.WriteString("|")
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return string(buf[:])
}
