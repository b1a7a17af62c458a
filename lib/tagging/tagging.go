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

// Package tagging wraps token-classification models behind the driver
// contracts the pipeline consumes: word segmentation, POS tagging and NER
// chunking for Chinese, plus aggregated POS/NER for English.
package tagging

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// ErrClosed is returned when a driver is used after Close.
var ErrClosed = errors.New("tagging: classifier is closed")

// DefaultDelimSet is the delimiter set used for internal sentence
// segmentation when CallOptions.UseDelim is set.
const DefaultDelimSet = "，,。：:；;！!？?"

// CallOptions carry the per-call knobs every driver accepts.
type CallOptions struct {
	// BatchSize is the mini-batch size for model invocation (0 = 256).
	BatchSize int
	// MaxLength bounds the units fed to the model per row; units beyond
	// the window are reported as out-of-window. 0 means the model default.
	MaxLength int
	// UseDelim splits sentences internally on DelimSet before windowing.
	UseDelim bool
	// DelimSet overrides DefaultDelimSet when non-empty.
	DelimSet string
	// ShowProgress renders a progress bar while batches run.
	ShowProgress bool
}

// delims returns the effective delimiter set.
func (o CallOptions) delims() string {
	if o.DelimSet != "" {
		return o.DelimSet
	}
	return DefaultDelimSet
}

func (o CallOptions) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return 256
}

// Result is the raw output of a classifier call: a flat matrix of per-unit
// logit rows plus, for each input sentence, the mapping from unit position to
// logits row. An alignment value of -1 marks a unit outside the tokenizer
// window (truncated or whitespace).
type Result struct {
	Logits     [][]float32
	Alignments [][]int
}

// TokenClassifier scores each unit of each sentence. Units are characters on
// the Chinese path and words on the POS-over-words path.
type TokenClassifier interface {
	Classify(ctx context.Context, sentences [][]string, opts CallOptions) (*Result, error)

	// ID2Label exposes the model's label table.
	ID2Label() map[int]string

	Close() error
}

// Chars splits a sentence into single-character units, the input form of the
// character-level Chinese models.
func Chars(text string) []string {
	runes := []rune(text)
	units := make([]string, len(runes))
	for i, r := range runes {
		units[i] = string(r)
	}
	return units
}

// isWhitespaceUnit reports whether a unit is entirely whitespace. Empty units
// do not count, matching the tokenizer's view of them.
func isWhitespaceUnit(unit string) bool {
	if unit == "" {
		return false
	}
	return strings.IndexFunc(unit, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

// argmax returns the index of the largest logit. Empty rows map to 0.
func argmax(row []float32) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}
