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

package decode

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bioesTable is a five-tag table for PER/ORG.
func bioesTable(t *testing.T) *LabelTable {
	t.Helper()
	table := NewLabelTable(map[int]string{
		0: "O",
		1: "B-PER", 2: "I-PER", 3: "E-PER", 4: "S-PER",
		5: "B-ORG", 6: "I-ORG", 7: "E-ORG", 8: "S-ORG",
	}, "bert_base")
	require.Equal(t, SchemeBIOES, table.Scheme())
	return table
}

// bioTable is a reduced table without end tags.
func bioTable(t *testing.T, modelName string) *LabelTable {
	t.Helper()
	return NewLabelTable(map[int]string{
		0: "O",
		1: "B-PER", 2: "I-PER",
		3: "B-LOC", 4: "I-LOC",
	}, modelName)
}

// chars builds per-character units from a sentence and parallel label IDs.
func chars(t *testing.T, sentence string, ids []int) []Unit {
	t.Helper()
	runes := []rune(sentence)
	require.Equal(t, len(runes), len(ids))
	units := make([]Unit, len(runes))
	for i, r := range runes {
		units[i] = Unit{Text: string(r), Pos: i, LabelID: ids[i]}
	}
	return units
}

func TestSchemeDetection(t *testing.T) {
	tests := []struct {
		name      string
		id2label  map[int]string
		modelName string
		want      Scheme
	}{
		{
			name:      "E prefix selects BIOES",
			id2label:  map[int]string{0: "O", 1: "B-PER", 2: "E-PER"},
			modelName: "bert_base",
			want:      SchemeBIOES,
		},
		{
			name:      "no E prefix selects BIO",
			id2label:  map[int]string{0: "O", 1: "B-PER", 2: "I-PER"},
			modelName: "bert_base",
			want:      SchemeBIO,
		},
		{
			name:      "model name convention selects finetuned BIO",
			id2label:  map[int]string{0: "O", 1: "B-PER", 2: "I-PER"},
			modelName: "BIO_finetune_pink_msra",
			want:      SchemeFinetunedBIO,
		},
		{
			name:      "BIOES wins over model name convention",
			id2label:  map[int]string{0: "O", 1: "B-PER", 2: "E-PER"},
			modelName: "BIO_finetune_pink_msra",
			want:      SchemeBIOES,
		},
		{
			name:      "label without separator does not look like an end tag",
			id2label:  map[int]string{0: "O", 1: "EVENT"},
			modelName: "bert_base",
			want:      SchemeBIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewLabelTable(tt.id2label, tt.modelName)
			assert.Equal(t, tt.want, table.Scheme())
		})
	}
}

func TestDecodeBIOES(t *testing.T) {
	table := bioesTable(t)

	t.Run("B I E run yields one entity", func(t *testing.T) {
		// 李安然 tagged B-PER I-PER E-PER.
		got := table.Decode(chars(t, "李安然", []int{1, 2, 3}))
		require.Len(t, got, 1)
		assert.Equal(t, NerToken{Word: "李安然", Ner: "PER", Start: 0, End: 3}, got[0])
	})

	t.Run("S yields a single-unit entity", func(t *testing.T) {
		got := table.Decode(chars(t, "去台北玩", []int{0, 4, 0, 0}))
		require.Len(t, got, 1)
		assert.Equal(t, NerToken{Word: "台", Ner: "PER", Start: 1, End: 2}, got[0])
	})

	t.Run("B without matching E yields nothing", func(t *testing.T) {
		got := table.Decode(chars(t, "李安然在", []int{1, 2, 2, 0}))
		assert.Empty(t, got)
	})

	t.Run("B overwrites an unfinished candidate", func(t *testing.T) {
		// First candidate (ORG) is silently dropped by the second B.
		got := table.Decode(chars(t, "中研院李安然", []int{5, 6, 0, 1, 2, 3}))
		require.Len(t, got, 1)
		assert.Equal(t, NerToken{Word: "李安然", Ner: "PER", Start: 3, End: 6}, got[0])
	})

	t.Run("I with mismatched type abandons the candidate", func(t *testing.T) {
		got := table.Decode(chars(t, "李安然也", []int{1, 6, 3, 0}))
		assert.Empty(t, got)
	})

	t.Run("E with mismatched type is discarded", func(t *testing.T) {
		got := table.Decode(chars(t, "李安然", []int{1, 2, 7}))
		assert.Empty(t, got)
	})

	t.Run("out-of-window units decode as O", func(t *testing.T) {
		got := table.Decode(chars(t, "李安然", []int{1, -1, 3}))
		assert.Empty(t, got)
	})

	t.Run("spans stay within the sentence", func(t *testing.T) {
		sentence := "趙小蘭是勞工部長"
		got := table.Decode(chars(t, sentence, []int{1, 2, 3, 0, 5, 6, 7, 0}))
		require.Len(t, got, 2)
		for _, tok := range got {
			assert.Greater(t, tok.End, tok.Start)
			assert.GreaterOrEqual(t, tok.Start, 0)
			assert.LessOrEqual(t, tok.End, utf8.RuneCountInString(sentence))
		}
	})
}

func TestDecodeBIO(t *testing.T) {
	table := bioTable(t, "bert_base")

	t.Run("emits lazily at the next O", func(t *testing.T) {
		got := table.Decode(chars(t, "柯文哲去", []int{1, 2, 2, 0}))
		require.Len(t, got, 1)
		assert.Equal(t, NerToken{Word: "柯文哲", Ner: "PER", Start: 0, End: 3}, got[0])
	})

	t.Run("emits at end of sentence", func(t *testing.T) {
		got := table.Decode(chars(t, "去土城看守所", []int{0, 3, 4, 4, 4, 4}))
		require.Len(t, got, 1)
		assert.Equal(t, NerToken{Word: "土城看守所", Ner: "LOC", Start: 1, End: 6}, got[0])
	})

	t.Run("mismatched I abandons the candidate", func(t *testing.T) {
		got := table.Decode(chars(t, "柯文哲", []int{1, 4, 0}))
		assert.Empty(t, got)
	})

	t.Run("lone B is not emitted", func(t *testing.T) {
		got := table.Decode(chars(t, "柯去", []int{1, 0}))
		assert.Empty(t, got)
	})

	t.Run("second B restarts the candidate", func(t *testing.T) {
		got := table.Decode(chars(t, "柯文布什", []int{1, 2, 1, 2}))
		require.Len(t, got, 1)
		assert.Equal(t, NerToken{Word: "布什", Ner: "PER", Start: 2, End: 4}, got[0])
	})
}

func TestDecodeFinetunedBIO(t *testing.T) {
	table := bioTable(t, "BIO_finetune_pink_msra")
	require.Equal(t, SchemeFinetunedBIO, table.Scheme())

	t.Run("I to O transition emits with adjusted end", func(t *testing.T) {
		// End offset is pos + len - 1, the rule the finetuned
		// checkpoints were validated against.
		got := table.Decode(chars(t, "柯文哲去", []int{1, 2, 2, 0}))
		require.Len(t, got, 1)
		assert.Equal(t, NerToken{Word: "柯文哲", Ner: "PER", Start: 0, End: 3}, got[0])
	})

	t.Run("open run at end of sentence is not emitted", func(t *testing.T) {
		got := table.Decode(chars(t, "柯文哲", []int{1, 2, 2}))
		assert.Empty(t, got)
	})

	t.Run("out-of-window O does not trigger emission", func(t *testing.T) {
		// The truncated unit decodes as O but stays invisible to the
		// transition rule; the following in-window O emits.
		got := table.Decode(chars(t, "柯文哲 去", []int{1, 2, 2, -1, 0}))
		require.Len(t, got, 1)
		assert.Equal(t, NerToken{Word: "柯文哲", Ner: "PER", Start: 0, End: 4}, got[0])
	})

	t.Run("mismatched I run never emits a candidate", func(t *testing.T) {
		got := table.Decode(chars(t, "柯文哲去", []int{1, 4, 4, 0}))
		assert.Empty(t, got)
	})
}

func TestLabelLookup(t *testing.T) {
	table := bioTable(t, "bert_base")

	assert.Equal(t, "O", table.Label(-1))
	assert.Equal(t, "O", table.Label(99))
	assert.Equal(t, "B-PER", table.Label(1))
	assert.ElementsMatch(t, []string{"O", "B-PER", "I-PER", "B-LOC", "I-LOC"}, table.Labels())
}
