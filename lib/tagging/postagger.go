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
)

// WhitespaceTag is assigned to words that are whitespace or fell outside the
// tokenizer window. Its length keeps it out of the coarse POS buckets.
const WhitespaceTag = "WHITESPACE"

// POSTagger assigns one part-of-speech tag per word.
type POSTagger struct {
	classifier TokenClassifier
	logger     *zap.Logger
}

// NewPOSTagger wraps a POS classifier. A nil logger disables logging.
func NewPOSTagger(classifier TokenClassifier, logger *zap.Logger) *POSTagger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &POSTagger{classifier: classifier, logger: logger}
}

// Tag labels each word of each word list, aligned 1:1 with the input.
func (p *POSTagger) Tag(ctx context.Context, wordLists [][]string, opts CallOptions) ([][]string, error) {
	if len(wordLists) == 0 {
		return nil, nil
	}

	res, err := p.classifier.Classify(ctx, wordLists, opts)
	if err != nil {
		return nil, fmt.Errorf("classifying words: %w", err)
	}
	id2label := p.classifier.ID2Label()

	out := make([][]string, len(wordLists))
	for i, words := range wordLists {
		tags := make([]string, len(words))
		for j, word := range words {
			idx := res.Alignments[i][j]
			if idx < 0 || isWhitespaceUnit(word) {
				tags[j] = WhitespaceTag
				continue
			}
			tags[j] = id2label[argmax(res.Logits[idx])]
		}
		out[i] = tags
	}

	p.logger.Debug("Tagged word lists", zap.Int("num_texts", len(wordLists)))
	return out, nil
}

// Close releases the underlying classifier.
func (p *POSTagger) Close() error {
	return p.classifier.Close()
}
