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
	"strings"

	"go.uber.org/zap"

	"github.com/nutsam/ner-model/lib/decode"
)

// WordTag is one aggregated English POS prediction.
type WordTag struct {
	// Word is the surface text; adjacent words with the same group are
	// merged with single spaces.
	Word string
	// EntityGroup is the aggregated tag (e.g. "NOUN", "PROPN").
	EntityGroup string
}

// EnglishPOS tags English sentences word by word and merges adjacent words
// sharing a tag, the simple aggregation strategy of the wrapped checkpoints.
type EnglishPOS struct {
	classifier TokenClassifier
	logger     *zap.Logger
}

// NewEnglishPOS wraps a word-level classifier. A nil logger disables logging.
func NewEnglishPOS(classifier TokenClassifier, logger *zap.Logger) *EnglishPOS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnglishPOS{classifier: classifier, logger: logger}
}

// Tag returns aggregated (word, entity group) pairs per sentence.
func (e *EnglishPOS) Tag(ctx context.Context, texts []string, opts CallOptions) ([][]WordTag, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	sentences := make([][]string, len(texts))
	for i, t := range texts {
		sentences[i] = strings.Fields(t)
	}

	res, err := e.classifier.Classify(ctx, sentences, opts)
	if err != nil {
		return nil, fmt.Errorf("classifying words: %w", err)
	}
	id2label := e.classifier.ID2Label()

	out := make([][]WordTag, len(texts))
	for i, words := range sentences {
		tags := []WordTag{}
		for j, word := range words {
			idx := res.Alignments[i][j]
			if idx < 0 {
				continue
			}
			group := groupOf(id2label[argmax(res.Logits[idx])])
			if group == "" {
				continue
			}
			if n := len(tags); n > 0 && tags[n-1].EntityGroup == group {
				tags[n-1].Word += " " + word
				continue
			}
			tags = append(tags, WordTag{Word: word, EntityGroup: group})
		}
		out[i] = tags
	}

	e.logger.Debug("Tagged English sentences", zap.Int("num_texts", len(texts)))
	return out, nil
}

// Close releases the underlying classifier.
func (e *EnglishPOS) Close() error {
	return e.classifier.Close()
}

// groupOf strips a B-/I- prefix when present; plain tags pass through.
func groupOf(label string) string {
	if label == "O" {
		return ""
	}
	if len(label) >= 2 && label[1] == '-' {
		return label[2:]
	}
	return label
}

// EnglishNER extracts entity surfaces per tag from English sentences. The
// span decoding reuses the same label-scheme dispatch as the Chinese chunker,
// over word units instead of characters.
type EnglishNER struct {
	classifier TokenClassifier
	table      *decode.LabelTable
	logger     *zap.Logger
}

// NewEnglishNER builds an English NER driver over a classifier.
func NewEnglishNER(classifier TokenClassifier, modelName string, logger *zap.Logger) *EnglishNER {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnglishNER{
		classifier: classifier,
		table:      decode.NewLabelTable(classifier.ID2Label(), modelName),
		logger:     logger,
	}
}

// Recognize returns, for each sentence, a mapping from entity tag to the
// surface strings found for it. Slots without entities are empty maps.
func (e *EnglishNER) Recognize(ctx context.Context, texts []string, opts CallOptions) ([]map[string][]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	sentences := make([][]string, len(texts))
	for i, t := range texts {
		sentences[i] = strings.Fields(t)
	}

	res, err := e.classifier.Classify(ctx, sentences, opts)
	if err != nil {
		return nil, fmt.Errorf("classifying words: %w", err)
	}

	out := make([]map[string][]string, len(texts))
	for i, words := range sentences {
		// Word units carry rune offsets so decoded spans slice the
		// original sentence, keeping interior spaces.
		runes := []rune(texts[i])
		units := make([]decode.Unit, len(words))
		pos := 0
		search := runes
		base := 0
		for j, word := range words {
			at := indexRunes(search, []rune(word))
			if at < 0 {
				at = 0
			}
			pos = base + at
			units[j] = decode.Unit{Text: word, Pos: pos, LabelID: -1}
			if idx := res.Alignments[i][j]; idx >= 0 {
				units[j].LabelID = argmax(res.Logits[idx])
			}
			base = pos + len([]rune(word))
			search = runes[base:]
		}

		found := map[string][]string{}
		for _, tok := range e.table.Decode(units) {
			start, end := tok.Start, tok.End
			if start < 0 || end > len(runes) || start >= end {
				continue
			}
			found[tok.Ner] = append(found[tok.Ner], string(runes[start:end]))
		}
		out[i] = found
	}

	e.logger.Debug("Recognized English entities", zap.Int("num_texts", len(texts)))
	return out, nil
}

// Close releases the underlying classifier.
func (e *EnglishNER) Close() error {
	return e.classifier.Close()
}

// indexRunes finds needle in haystack at rune granularity.
func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
