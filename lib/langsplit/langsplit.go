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

// Package langsplit splits cleaned text into delimiter-bounded clauses and
// classifies each clause as English, mixed, or Chinese so the orchestrator
// can route it to the right model family.
package langsplit

import (
	"regexp"
	"unicode/utf8"
)

// Class is the language classification of a clause.
type Class int

const (
	// ClassChinese routes the clause to the Chinese-only path.
	ClassChinese Class = iota
	// ClassMixed marks a clause with embedded ASCII runs among Chinese text.
	ClassMixed
	// ClassEnglish marks a clause that is almost entirely ASCII.
	ClassEnglish
)

// englishThreshold is the ASCII-run ratio above which a clause counts as
// English.
const englishThreshold = 0.95

// clauseDelims covers Chinese and Western sentence punctuation plus newline.
var clauseDelims = regexp.MustCompile(`[，,。：:；;！!.？?\n]`)

// asciiRuns matches runs of two or more ASCII letters or digits.
var asciiRuns = regexp.MustCompile(`[A-Za-z0-9]{2,}`)

// Clause is a delimiter-bounded segment of a text with its classification.
type Clause struct {
	Text  string
	Class Class
}

// Split cuts text on the delimiter set and classifies each non-empty clause.
func Split(text string) []Clause {
	parts := clauseDelims.Split(text, -1)
	clauses := make([]Clause, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		clauses = append(clauses, Clause{Text: p, Class: Classify(p)})
	}
	return clauses
}

// Classify labels one clause. A clause is English when its ASCII-run ratio
// exceeds the threshold; a non-English clause with at least one ASCII run is
// mixed; everything else is Chinese. The empty clause is never English.
func Classify(clause string) Class {
	if IsEnglish(clause) {
		return ClassEnglish
	}
	if asciiRuns.MatchString(clause) {
		return ClassMixed
	}
	return ClassChinese
}

// IsEnglish reports whether the clause is almost entirely ASCII. The ratio is
// (sum of ASCII-run lengths + max(runs-1, 0)) / clause length, counting the
// separators expected between consecutive runs.
func IsEnglish(clause string) bool {
	if clause == "" {
		return false
	}
	runs := asciiRuns.FindAllString(clause, -1)
	total := 0
	for _, r := range runs {
		total += len(r)
	}
	if n := len(runs) - 1; n > 0 {
		total += n
	}
	ratio := float64(total) / float64(utf8.RuneCountInString(clause))
	return ratio > englishThreshold
}
