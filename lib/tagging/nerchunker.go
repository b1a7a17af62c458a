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

	"go.uber.org/zap"

	"github.com/nutsam/ner-model/lib/decode"
)

// NERChunker decodes a token-classification model's label sequences into
// entity spans. The decoding scheme is fixed once from the model's label
// table and name, not re-detected per call.
type NERChunker struct {
	classifier TokenClassifier
	table      *decode.LabelTable
	logger     *zap.Logger
}

// NewNERChunker builds a chunker over a classifier. modelName selects the
// finetuned BIO decoding variant by naming convention.
func NewNERChunker(classifier TokenClassifier, modelName string, logger *zap.Logger) *NERChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NERChunker{
		classifier: classifier,
		table:      decode.NewLabelTable(classifier.ID2Label(), modelName),
		logger:     logger,
	}
}

// Scheme exposes the decoding scheme in use.
func (c *NERChunker) Scheme() decode.Scheme {
	return c.table.Scheme()
}

// Chunk extracts entity spans from each text.
func (c *NERChunker) Chunk(ctx context.Context, texts []string, opts CallOptions) ([][]decode.NerToken, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	sentences := make([][]string, len(texts))
	for i, t := range texts {
		sentences[i] = Chars(t)
	}

	res, err := c.classifier.Classify(ctx, sentences, opts)
	if err != nil {
		return nil, fmt.Errorf("classifying characters: %w", err)
	}

	out := make([][]decode.NerToken, len(texts))
	total := 0
	for i, chars := range sentences {
		units := make([]decode.Unit, len(chars))
		for j, ch := range chars {
			labelID := -1
			if idx := res.Alignments[i][j]; idx >= 0 {
				labelID = argmax(res.Logits[idx])
			}
			units[j] = decode.Unit{Text: ch, Pos: j, LabelID: labelID}
		}
		out[i] = c.table.Decode(units)
		total += len(out[i])
	}

	c.logger.Debug("Chunked entities",
		zap.Int("num_texts", len(texts)),
		zap.Int("total_entities", total),
		zap.String("scheme", string(c.table.Scheme())))
	return out, nil
}

// Close releases the underlying classifier.
func (c *NERChunker) Close() error {
	return c.classifier.Close()
}
