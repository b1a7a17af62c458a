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

package tagging

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Ensure PooledClassifier implements the TokenClassifier interface
var _ TokenClassifier = (*PooledClassifier)(nil)

// PoolConfig holds configuration for creating a PooledClassifier.
type PoolConfig struct {
	// ModelPath is the path to the model directory
	ModelPath string

	// ONNXFile overrides the model file name (default model.onnx)
	ONNXFile string

	// PoolSize determines how many concurrent requests can be processed
	// (0 = auto-detect from CPU count)
	PoolSize int

	// MaxLength is the default window for classifiers in the pool
	MaxLength int

	// Logger for logging (nil = no logging)
	Logger *zap.Logger
}

// PooledClassifier manages multiple ONNXClassifier instances so concurrent
// pipeline passes never contend on one session.
type PooledClassifier struct {
	classifiers []*ONNXClassifier
	sem         *semaphore.Weighted
	next        atomic.Uint64
	logger      *zap.Logger
	poolSize    int
	closeOnce   sync.Once
}

// NewPooledClassifier creates PoolSize classifiers over the same model.
func NewPooledClassifier(cfg PoolConfig) (*PooledClassifier, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}

	logger.Info("Initializing pooled classifier",
		zap.String("modelPath", cfg.ModelPath),
		zap.Int("poolSize", poolSize))

	classifiers := make([]*ONNXClassifier, poolSize)
	for i := 0; i < poolSize; i++ {
		classifier, err := NewONNXClassifier(ONNXConfig{
			ModelPath: cfg.ModelPath,
			ONNXFile:  cfg.ONNXFile,
			MaxLength: cfg.MaxLength,
			Logger:    logger,
		})
		if err != nil {
			for j := 0; j < i; j++ {
				if classifiers[j] != nil {
					_ = classifiers[j].Close()
				}
			}
			logger.Error("Failed to create classifier",
				zap.Int("index", i),
				zap.Error(err))
			return nil, fmt.Errorf("creating classifier %d: %w", i, err)
		}
		classifiers[i] = classifier
	}

	return &PooledClassifier{
		classifiers: classifiers,
		sem:         semaphore.NewWeighted(int64(poolSize)),
		logger:      logger,
		poolSize:    poolSize,
	}, nil
}

// ID2Label returns the label table shared by the pool.
func (p *PooledClassifier) ID2Label() map[int]string {
	return p.classifiers[0].ID2Label()
}

// Classify scores the sentences on the next free classifier.
// Thread-safe: uses semaphore to limit concurrent session access.
func (p *PooledClassifier) Classify(ctx context.Context, sentences [][]string, opts CallOptions) (*Result, error) {
	if len(sentences) == 0 {
		return &Result{}, nil
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring classifier slot: %w", err)
	}
	defer p.sem.Release(1)

	idx := int(p.next.Add(1) % uint64(p.poolSize))
	p.logger.Debug("Using classifier",
		zap.Int("classifierIndex", idx),
		zap.Int("num_sentences", len(sentences)))

	return p.classifiers[idx].Classify(ctx, sentences, opts)
}

// Close releases all classifiers in the pool.
func (p *PooledClassifier) Close() error {
	var lastErr error
	p.closeOnce.Do(func() {
		for i, classifier := range p.classifiers {
			if classifier == nil {
				continue
			}
			if err := classifier.Close(); err != nil {
				p.logger.Warn("Failed to close classifier",
					zap.Int("index", i),
					zap.Error(err))
				lastErr = err
			}
		}
	})
	return lastErr
}
