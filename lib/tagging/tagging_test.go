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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutsam/ner-model/lib/decode"
)

// fakeClassifier scripts one label id per unit; -1 marks the unit as outside
// the tokenizer window. Logits rows are one-hot on the scripted id.
type fakeClassifier struct {
	id2label map[int]string
	rows     [][]int
	closed   bool
}

func (f *fakeClassifier) Classify(_ context.Context, sentences [][]string, _ CallOptions) (*Result, error) {
	if f.closed {
		return nil, ErrClosed
	}
	res := &Result{}
	for i, units := range sentences {
		align := make([]int, len(units))
		for j := range units {
			id := f.rows[i][j]
			if id < 0 {
				align[j] = -1
				continue
			}
			row := make([]float32, len(f.id2label))
			row[id] = 1
			align[j] = len(res.Logits)
			res.Logits = append(res.Logits, row)
		}
		res.Alignments = append(res.Alignments, align)
	}
	return res, nil
}

func (f *fakeClassifier) ID2Label() map[int]string { return f.id2label }

func (f *fakeClassifier) Close() error {
	f.closed = true
	return nil
}

var boundaryLabels = map[int]string{0: "B", 1: "I"}

func TestWordSegmenter(t *testing.T) {
	ctx := context.Background()

	t.Run("groups characters into words", func(t *testing.T) {
		fake := &fakeClassifier{
			id2label: boundaryLabels,
			rows:     [][]int{{0, 1, 0, 0, 1}},
		}
		seg := NewWordSegmenter(fake, nil)

		words, err := seg.Segment(ctx, []string{"我愛你台北"}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"我愛", "你", "台北"}}, words)
	})

	t.Run("out-of-window characters pass through alone", func(t *testing.T) {
		fake := &fakeClassifier{
			id2label: boundaryLabels,
			rows:     [][]int{{0, 1, -1, 1}},
		}
		seg := NewWordSegmenter(fake, nil)

		words, err := seg.Segment(ctx, []string{"台北 好"}, CallOptions{})
		require.NoError(t, err)
		// The space flushes "台北" and stands alone; "好" starts fresh.
		assert.Equal(t, [][]string{{"台北", " ", "好"}}, words)
	})

	t.Run("empty input", func(t *testing.T) {
		seg := NewWordSegmenter(&fakeClassifier{id2label: boundaryLabels}, nil)
		words, err := seg.Segment(ctx, nil, CallOptions{})
		require.NoError(t, err)
		assert.Nil(t, words)
	})

	t.Run("closed classifier surfaces error", func(t *testing.T) {
		fake := &fakeClassifier{id2label: boundaryLabels, rows: [][]int{{0}}}
		seg := NewWordSegmenter(fake, nil)
		require.NoError(t, seg.Close())

		_, err := seg.Segment(ctx, []string{"我"}, CallOptions{})
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestPOSTagger(t *testing.T) {
	ctx := context.Background()
	posLabels := map[int]string{0: "Na", 1: "VC", 2: "D"}

	t.Run("tags each word", func(t *testing.T) {
		fake := &fakeClassifier{
			id2label: posLabels,
			rows:     [][]int{{0, 1, 0}},
		}
		tagger := NewPOSTagger(fake, nil)

		tags, err := tagger.Tag(ctx, [][]string{{"我", "愛", "台北"}}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Na", "VC", "Na"}}, tags)
	})

	t.Run("whitespace and out-of-window words get the whitespace tag", func(t *testing.T) {
		fake := &fakeClassifier{
			id2label: posLabels,
			rows:     [][]int{{0, 1, -1}},
		}
		tagger := NewPOSTagger(fake, nil)

		tags, err := tagger.Tag(ctx, [][]string{{"我", " ", "台北"}}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Na", WhitespaceTag, WhitespaceTag}}, tags)
	})
}

func TestNERChunker(t *testing.T) {
	ctx := context.Background()
	nerLabels := map[int]string{
		0: "O",
		1: "B-PER",
		2: "I-PER",
		3: "E-PER",
		4: "S-LOC",
	}

	fake := &fakeClassifier{
		id2label: nerLabels,
		rows:     [][]int{{1, 2, 3, 0, 4}},
	}
	chunker := NewNERChunker(fake, "ckip-ner", nil)
	assert.Equal(t, decode.SchemeBIOES, chunker.Scheme())

	spans, err := chunker.Chunk(ctx, []string{"李安然在台"}, CallOptions{})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, []decode.NerToken{
		{Word: "李安然", Ner: "PER", Start: 0, End: 3},
		{Word: "台", Ner: "LOC", Start: 4, End: 5},
	}, spans[0])
}

func TestEnglishPOS(t *testing.T) {
	ctx := context.Background()
	posLabels := map[int]string{0: "O", 1: "PROPN", 2: "VERB", 3: "NOUN"}

	t.Run("merges adjacent words with the same group", func(t *testing.T) {
		fake := &fakeClassifier{
			id2label: posLabels,
			rows:     [][]int{{1, 1, 2, 3}},
		}
		pos := NewEnglishPOS(fake, nil)

		tags, err := pos.Tag(ctx, []string{"Tim Cook leads Apple"}, CallOptions{})
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, []WordTag{
			{Word: "Tim Cook", EntityGroup: "PROPN"},
			{Word: "leads", EntityGroup: "VERB"},
			{Word: "Apple", EntityGroup: "NOUN"},
		}, tags[0])
	})

	t.Run("skips O and out-of-window words", func(t *testing.T) {
		fake := &fakeClassifier{
			id2label: posLabels,
			rows:     [][]int{{0, 3, -1}},
		}
		pos := NewEnglishPOS(fake, nil)

		tags, err := pos.Tag(ctx, []string{"the cat sat"}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, []WordTag{{Word: "cat", EntityGroup: "NOUN"}}, tags[0])
	})

	t.Run("strips B-/I- prefixes before merging", func(t *testing.T) {
		prefixed := map[int]string{0: "O", 1: "B-NOUN", 2: "I-NOUN"}
		fake := &fakeClassifier{
			id2label: prefixed,
			rows:     [][]int{{1, 2}},
		}
		pos := NewEnglishPOS(fake, nil)

		tags, err := pos.Tag(ctx, []string{"ice cream"}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, []WordTag{{Word: "ice cream", EntityGroup: "NOUN"}}, tags[0])
	})
}

func TestEnglishNER(t *testing.T) {
	ctx := context.Background()
	nerLabels := map[int]string{
		0: "O",
		1: "B-PERSON",
		2: "E-PERSON",
		3: "S-ORG",
	}

	fake := &fakeClassifier{
		id2label: nerLabels,
		rows: [][]int{
			{1, 2, 0, 3},
			{0, 0},
		},
	}
	ner := NewEnglishNER(fake, "en-ner", nil)

	found, err := ner.Recognize(ctx, []string{"Tim Cook leads Apple", "nothing here"}, CallOptions{})
	require.NoError(t, err)
	require.Len(t, found, 2)

	// Multi-word spans keep the interior space from the original sentence.
	assert.Equal(t, []string{"Tim Cook"}, found[0]["PERSON"])
	assert.Equal(t, []string{"Apple"}, found[0]["ORG"])
	assert.Empty(t, found[1])
}

func TestChars(t *testing.T) {
	assert.Equal(t, []string{"台", "北", "a"}, Chars("台北a"))
	assert.Empty(t, Chars(""))
}

func TestIsWhitespaceUnit(t *testing.T) {
	assert.True(t, isWhitespaceUnit(" "))
	assert.True(t, isWhitespaceUnit("　"))
	assert.False(t, isWhitespaceUnit(""))
	assert.False(t, isWhitespaceUnit("a"))
	assert.False(t, isWhitespaceUnit(" a"))
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, argmax([]float32{0.1, 0.3, 0.9}))
	assert.Equal(t, 0, argmax([]float32{0.5, 0.5}))
	assert.Equal(t, 0, argmax(nil))
}
