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

// Package decode converts per-token label-ID sequences emitted by a
// token-classification model into typed entity spans. It supports BIOES
// decoding, plain BIO decoding, and the boundary rule used by the
// BIO-finetuned checkpoints.
package decode

import (
	"strings"
	"unicode/utf8"
)

// NerToken is a decoded named-entity span.
type NerToken struct {
	// Word is the entity surface text.
	Word string `json:"word"`
	// Ner is the entity type label (e.g. "PER", "ORG").
	Ner string `json:"ner"`
	// Start is the character offset where the entity begins.
	Start int `json:"start"`
	// End is the character offset where the entity ends (exclusive).
	End int `json:"end"`
}

// Scheme identifies the labeling scheme a model was trained with.
// The scheme is selected once per label table, not re-detected per sentence.
type Scheme string

const (
	// SchemeBIOES is the five-tag scheme with explicit S (single) and E (end) tags.
	SchemeBIOES Scheme = "bioes"
	// SchemeBIO is the reduced scheme without end tags; entities are emitted
	// lazily at the next O tag or at end of sentence.
	SchemeBIO Scheme = "bio"
	// SchemeFinetunedBIO is the BIO variant used by the finetuned checkpoints.
	// It emits on the I->O transition with the end offset those checkpoints
	// were validated against.
	SchemeFinetunedBIO Scheme = "bio-finetuned"
)

// Unit is one decoding unit of a sentence: a character on the Chinese path,
// a sub-word or word on the English path.
type Unit struct {
	// Text is the surface text of the unit.
	Text string
	// Pos is the character offset of the unit within its sentence.
	Pos int
	// LabelID indexes the label table. A negative value marks a unit that
	// fell outside the tokenizer window (truncated or whitespace); it is
	// decoded as O and never starts or extends an entity.
	LabelID int
}

// LabelTable maps label IDs to tag strings and carries the decoding scheme
// detected from the label set.
type LabelTable struct {
	labels map[int]string
	scheme Scheme
}

// NewLabelTable builds a LabelTable from an id2label mapping. The scheme is
// BIOES when any label carries an E prefix, otherwise BIO. modelName selects
// the finetuned BIO variant by naming convention when the label set is not
// BIOES.
func NewLabelTable(id2label map[int]string, modelName string) *LabelTable {
	scheme := SchemeBIO
	for _, label := range id2label {
		if prefix, _, ok := splitLabel(label); ok && prefix == "E" {
			scheme = SchemeBIOES
			break
		}
	}
	if scheme == SchemeBIO && strings.Contains(modelName, "BIO") {
		scheme = SchemeFinetunedBIO
	}

	labels := make(map[int]string, len(id2label))
	for id, label := range id2label {
		labels[id] = label
	}
	return &LabelTable{labels: labels, scheme: scheme}
}

// Scheme returns the decoding scheme detected for this label table.
func (t *LabelTable) Scheme() Scheme {
	return t.scheme
}

// Label resolves a label ID. Unknown or negative IDs resolve to O.
func (t *LabelTable) Label(id int) string {
	if id < 0 {
		return "O"
	}
	if label, ok := t.labels[id]; ok {
		return label
	}
	return "O"
}

// Labels returns all tag strings in the table.
func (t *LabelTable) Labels() []string {
	out := make([]string, 0, len(t.labels))
	for _, label := range t.labels {
		out = append(out, label)
	}
	return out
}

// Decode converts one sentence's label assignments into entity spans.
// Malformed labels never cause an error; they are skipped.
func (t *LabelTable) Decode(units []Unit) []NerToken {
	switch t.scheme {
	case SchemeBIOES:
		return t.decodeBIOES(units)
	case SchemeFinetunedBIO:
		return t.decodeFinetunedBIO(units)
	default:
		return t.decodeBIO(units)
	}
}

// decodeBIOES implements standard five-tag decoding. A B tag overwrites any
// unfinished candidate without emitting it; I and E tags with a type that
// does not match the open candidate abandon it.
func (t *LabelTable) decodeBIOES(units []Unit) []NerToken {
	out := []NerToken{}

	var word strings.Builder
	ner := ""
	start := 0

	for _, u := range units {
		label := t.Label(u.LabelID)
		if label == "O" {
			ner = ""
			continue
		}

		prefix, typ, ok := splitLabel(label)
		if !ok {
			continue
		}

		switch prefix {
		case "S":
			out = append(out, NerToken{
				Word:  u.Text,
				Ner:   typ,
				Start: u.Pos,
				End:   u.Pos + utf8.RuneCountInString(u.Text),
			})
			ner = ""
		case "B":
			word.Reset()
			word.WriteString(u.Text)
			ner = typ
			start = u.Pos
		case "I":
			if ner == typ {
				word.WriteString(u.Text)
			} else {
				ner = ""
			}
		case "E":
			if ner == typ {
				word.WriteString(u.Text)
				out = append(out, NerToken{
					Word:  word.String(),
					Ner:   ner,
					Start: start,
					End:   u.Pos + utf8.RuneCountInString(u.Text),
				})
			}
			ner = ""
		}
	}

	return out
}

// decodeBIO implements plain BIO decoding. The scheme has no end tag, so an
// open I run is emitted at the next O or at end of sentence, using the
// positions recorded so far.
func (t *LabelTable) decodeBIO(units []Unit) []NerToken {
	out := []NerToken{}

	var word strings.Builder
	ner := ""
	start := 0
	end := 0
	inside := false // at least one I extended the candidate

	flush := func() {
		if ner != "" && inside {
			out = append(out, NerToken{Word: word.String(), Ner: ner, Start: start, End: end})
		}
		ner = ""
		inside = false
	}

	for _, u := range units {
		label := t.Label(u.LabelID)
		if label == "O" {
			flush()
			continue
		}

		prefix, typ, ok := splitLabel(label)
		if !ok {
			continue
		}

		switch prefix {
		case "B":
			word.Reset()
			word.WriteString(u.Text)
			ner = typ
			start = u.Pos
			end = u.Pos + utf8.RuneCountInString(u.Text)
			inside = false
		case "I":
			if ner == typ {
				word.WriteString(u.Text)
				end = u.Pos + utf8.RuneCountInString(u.Text)
				inside = true
			} else {
				ner = ""
				inside = false
			}
		}
	}
	flush()

	return out
}

// decodeFinetunedBIO implements the decoding the BIO-finetuned checkpoints
// were validated against. The I->O transition emits immediately with the end
// offset computed as pos + len(text) - 1, and only when the O comes from a
// unit inside the tokenizer window. An open run at end of sentence is not
// emitted.
func (t *LabelTable) decodeFinetunedBIO(units []Unit) []NerToken {
	out := []NerToken{}

	var word strings.Builder
	ner := ""
	start := 0
	prevPrefix := ""

	for _, u := range units {
		inWindow := u.LabelID >= 0
		label := t.Label(u.LabelID)

		if label == "O" && prevPrefix == "I" && inWindow {
			if ner != "" {
				out = append(out, NerToken{
					Word:  word.String(),
					Ner:   ner,
					Start: start,
					End:   u.Pos + utf8.RuneCountInString(u.Text) - 1,
				})
			}
			prevPrefix = ""
			ner = ""
			continue
		}

		prefix, typ, ok := splitLabel(label)
		if !ok {
			// Out-of-window units and malformed labels leave the
			// recorded transition state untouched.
			continue
		}

		switch prefix {
		case "B":
			word.Reset()
			word.WriteString(u.Text)
			ner = typ
			start = u.Pos
		case "I":
			if ner == typ {
				word.WriteString(u.Text)
			} else {
				ner = ""
			}
		}
		prevPrefix = prefix
	}

	return out
}

// splitLabel splits a tag into its prefix and entity type on the first dash.
// Labels without a separator are not applicable to entity extraction.
func splitLabel(label string) (prefix, typ string, ok bool) {
	i := strings.IndexByte(label, '-')
	if i < 0 {
		return "", "", false
	}
	return label[:i], label[i+1:], true
}
