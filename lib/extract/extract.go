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

// Package extract turns word/POS/NER model output into entity buckets and
// applies the merge and cleaning passes that produce the public result.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nutsam/ner-model/lib/decode"
)

// Sentinel replaces whitespace inside multi-word entity surfaces so they stay
// single tokens in set-valued buckets.
const Sentinel = "&nbsp;"

// DefaultMaxSurfaceLen is the longest surface string kept in a bucket,
// measured after stripping sentinels.
const DefaultMaxSurfaceLen = 35

// crossLingualLabels is the entity label set shared by the English and
// default Chinese models.
var crossLingualLabels = map[string]bool{
	"PERSON": true, "ORG": true, "EVENT": true, "FAC": true, "PRODUCT": true,
	"GPE": true, "LOC": true, "NORP": true, "WORK_OF_ART": true,
}

// finetunedLabels is the narrower set emitted by the BIO-finetuned models.
var finetunedLabels = map[string]bool{
	"PER": true, "LOC": true, "ORG": true,
}

// genericLabels are the coarse POS buckets. They are never merge-sources in
// UpdateEntities.
var genericLabels = map[string]bool{
	"n": true, "v": true, "adv": true, "neu": true, "fw": true, "adj": true, "det": true,
}

// nounTags route a POS tag into the "n" bucket.
var nounTags = map[string]bool{
	"Na": true, "Nb": true, "Nc": true, "PRON": true,
}

var hanPattern = regexp.MustCompile(`\p{Han}`)

// Bucket maps a lowercase entity label to a set of surface strings.
// Keys never contain whitespace.
type Bucket map[string]map[string]struct{}

// Add inserts a surface string under a label, creating the set as needed.
func (b Bucket) Add(label, word string) {
	set, ok := b[label]
	if !ok {
		set = make(map[string]struct{})
		b[label] = set
	}
	set[word] = struct{}{}
}

// Union merges the other bucket into b, label by label. Existing sets are
// unioned, never overwritten.
func (b Bucket) Union(other Bucket) {
	for label, words := range other {
		for w := range words {
			b.Add(label, w)
		}
	}
}

// Words returns the sorted-free set under a label as a slice, or nil.
func (b Bucket) Words(label string) []string {
	set := b[label]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	return out
}

// Options control extraction.
type Options struct {
	// FinetunedBIO narrows the accepted NER labels to the three-label set
	// of the BIO-finetuned models.
	FinetunedBIO bool

	// MaxSurfaceLen overrides DefaultMaxSurfaceLen when positive.
	MaxSurfaceLen int
}

// FromTokens builds a bucket from parallel word/POS sequences and decoded
// NER tokens. Word tokens land in the coarse adj/adv/v/n buckets by POS
// membership; NER tokens land in lowercase-label buckets when their label is
// in the allowed set, with embedded spaces replaced by the sentinel.
func FromTokens(words, pos []string, ents []decode.NerToken, opts Options) Bucket {
	maxLen := opts.MaxSurfaceLen
	if maxLen <= 0 {
		maxLen = DefaultMaxSurfaceLen
	}

	bucket := Bucket{}
	for i, w := range words {
		if i >= len(pos) {
			break
		}
		w = strings.TrimSpace(w)
		tag := strings.TrimSpace(pos[i])
		if utf8.RuneCountInString(w) <= 1 || len(tag) > 4 {
			continue
		}
		if strings.Contains(tag, "A") {
			bucket.Add("adj", w)
		}
		if strings.Contains(tag, "D") {
			bucket.Add("adv", w)
		}
		if strings.Contains(tag, "V") {
			bucket.Add("v", w)
		}
		if nounTags[tag] {
			bucket.Add("n", w)
		}
	}

	for _, ent := range ents {
		word := strings.ToUpper(strings.TrimSpace(ent.Word))
		if word == "" || !labelAllowed(ent.Ner, opts.FinetunedBIO) {
			continue
		}
		bucket.Add(strings.ToLower(ent.Ner), strings.ReplaceAll(word, " ", Sentinel))
	}

	for label, set := range bucket {
		for w := range set {
			if utf8.RuneCountInString(strings.ReplaceAll(w, Sentinel, "")) > maxLen {
				delete(set, w)
			}
		}
		if len(set) == 0 {
			delete(bucket, label)
		}
	}
	return bucket
}

func labelAllowed(label string, finetuned bool) bool {
	if finetuned && finetunedLabels[label] {
		return true
	}
	return crossLingualLabels[label]
}

// UpdateEntities reconciles full multi-word entities with the fragments the
// word segmenter put into the n/adj buckets: the fragments are removed and
// replaced by the full surface string. Generic POS buckets are never
// merge-sources. Buckets are modified in place.
func UpdateEntities(results map[int]Bucket) map[int]Bucket {
	targets := []string{"n", "adj"}
	for _, bucket := range results {
		for label, words := range bucket {
			if genericLabels[label] {
				continue
			}
			for full := range words {
				parts := strings.Split(full, Sentinel)
				if len(parts) <= 1 {
					continue
				}
				for _, target := range targets {
					set, ok := bucket[target]
					if !ok {
						continue
					}
					for _, p := range parts {
						delete(set, p)
					}
					set[full] = struct{}{}
				}
			}
		}
	}
	return results
}

// EnhancedCleaning applies the final keep/normalize rules and returns a new
// result map. Running it on its own output is a no-op.
func EnhancedCleaning(results map[int]Bucket) map[int]Bucket {
	cleaned := make(map[int]Bucket, len(results))
	for idx, bucket := range results {
		out := Bucket{}
		for label, words := range bucket {
			for w := range words {
				if !shouldKeep(w) {
					continue
				}
				out.Add(label, normalizeSurface(w))
			}
		}
		cleaned[idx] = out
	}
	return cleaned
}

// shouldKeep rejects surface strings that are artifacts of segmentation or
// markup rather than entities.
func shouldKeep(token string) bool {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "'") || strings.HasPrefix(token, "-") {
		return false
	}
	if strings.ContainsAny(token, `,/\`) {
		return false
	}
	n := utf8.RuneCountInString(token)
	hasChinese := hanPattern.MatchString(token)
	if hasChinese && containsDigit(token) && n < 5 {
		return false
	}
	if strings.Contains(token, " ") && n < 5 {
		return false
	}
	if hasChinese && containsLetter(token) && containsDigit(token) &&
		strings.Contains(token, " ") && n < 8 {
		return false
	}
	return true
}

// normalizeSurface strips newlines, collapses the sentinel back to spaces for
// trimming, and re-encodes interior spaces as sentinels.
func normalizeSurface(token string) string {
	token = strings.ReplaceAll(token, "\n", "")
	token = strings.ReplaceAll(token, Sentinel, " ")
	token = strings.TrimSpace(token)
	return strings.ReplaceAll(token, " ", Sentinel)
}

func containsDigit(s string) bool {
	return strings.ContainsFunc(s, unicode.IsDigit)
}

func containsLetter(s string) bool {
	return strings.ContainsFunc(s, unicode.IsLetter)
}
