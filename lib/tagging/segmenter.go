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

// WordSegmenter decodes the two-logit word-boundary model into word lists.
type WordSegmenter struct {
	classifier TokenClassifier
	logger     *zap.Logger
}

// NewWordSegmenter wraps a boundary classifier. A nil logger disables logging.
func NewWordSegmenter(classifier TokenClassifier, logger *zap.Logger) *WordSegmenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WordSegmenter{classifier: classifier, logger: logger}
}

// Segment splits each text into words. Each character carries a (B, I) logit
// pair; a B score above I starts a new word. Characters outside the tokenizer
// window flush the current word and pass through as single-character words.
func (s *WordSegmenter) Segment(ctx context.Context, texts []string, opts CallOptions) ([][]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	sentences := make([][]string, len(texts))
	for i, t := range texts {
		sentences[i] = Chars(t)
	}

	res, err := s.classifier.Classify(ctx, sentences, opts)
	if err != nil {
		return nil, fmt.Errorf("classifying boundaries: %w", err)
	}

	out := make([][]string, len(texts))
	for i, units := range sentences {
		words := []string{}
		word := ""
		for j, unit := range units {
			idx := res.Alignments[i][j]
			if idx < 0 {
				if word != "" {
					words = append(words, word)
				}
				words = append(words, unit)
				word = ""
				continue
			}
			row := res.Logits[idx]
			if len(row) >= 2 && row[0] > row[1] {
				if word != "" {
					words = append(words, word)
				}
				word = unit
			} else {
				word += unit
			}
		}
		if word != "" {
			words = append(words, word)
		}
		out[i] = words
	}

	s.logger.Debug("Segmented texts", zap.Int("num_texts", len(texts)))
	return out, nil
}

// Close releases the underlying classifier.
func (s *WordSegmenter) Close() error {
	return s.classifier.Close()
}
