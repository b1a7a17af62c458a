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

package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutsam/ner-model/lib/decode"
)

func set(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func TestFromTokensPOSRouting(t *testing.T) {
	words := []string{"蘋果", "快速", "跑", "非常", "電腦"}
	pos := []string{"Na", "A", "VC", "D", "Nc"}

	bucket := FromTokens(words, pos, nil, Options{})

	assert.Equal(t, set("蘋果", "電腦"), bucket["n"])
	assert.Equal(t, set("快速"), bucket["adj"])
	assert.Equal(t, set("非常"), bucket["adv"])
	// 跑 is a single character, so the VC tag never fires.
	assert.NotContains(t, bucket, "v")
}

func TestFromTokensSkipsLongTags(t *testing.T) {
	bucket := FromTokens([]string{"空白"}, []string{"WHITESPACE"}, nil, Options{})
	assert.Empty(t, bucket)
}

func TestFromTokensNERRouting(t *testing.T) {
	ents := []decode.NerToken{
		{Word: "Patty Chang", Ner: "PERSON"},
		{Word: "台北", Ner: "GPE"},
		{Word: "柯文哲", Ner: "PER"}, // only valid for finetuned models
		{Word: "something", Ner: "DATE"},
	}

	t.Run("cross-lingual label set", func(t *testing.T) {
		bucket := FromTokens(nil, nil, ents, Options{})
		assert.Equal(t, set("PATTY"+Sentinel+"CHANG"), bucket["person"])
		assert.Equal(t, set("台北"), bucket["gpe"])
		assert.NotContains(t, bucket, "per")
		assert.NotContains(t, bucket, "date")
	})

	t.Run("finetuned label set also accepts PER", func(t *testing.T) {
		bucket := FromTokens(nil, nil, ents, Options{FinetunedBIO: true})
		assert.Equal(t, set("柯文哲"), bucket["per"])
		assert.Contains(t, bucket, "person")
	})
}

func TestFromTokensDropsOverlongSurfaces(t *testing.T) {
	long := strings.Repeat("長", 36)
	ents := []decode.NerToken{
		{Word: long, Ner: "ORG"},
		{Word: "台積電", Ner: "ORG"},
	}
	bucket := FromTokens(nil, nil, ents, Options{})
	assert.Equal(t, set("台積電"), bucket["org"])
}

func TestFromTokensSentinelLengthNotCounted(t *testing.T) {
	// 20 letters split into words: sentinels are stripped before the
	// length check, so the surface survives.
	ents := []decode.NerToken{{Word: "AAAAAAAAAA BBBBBBBBBB CCCCCCCCCC", Ner: "ORG"}}
	bucket := FromTokens(nil, nil, ents, Options{})
	require.Len(t, bucket["org"], 1)
}

func TestUpdateEntities(t *testing.T) {
	full := "蘋果" + Sentinel + "公司"
	results := map[int]Bucket{
		0: {
			"n":   set("蘋果", "公司", "電腦"),
			"adj": set("蘋果"),
			"org": set(full),
		},
	}

	UpdateEntities(results)

	assert.Equal(t, set("電腦", full), results[0]["n"])
	assert.Equal(t, set(full), results[0]["adj"])
	assert.Equal(t, set(full), results[0]["org"])
}

func TestUpdateEntitiesGenericBucketsAreNotMergeSources(t *testing.T) {
	full := "蘋果" + Sentinel + "公司"
	results := map[int]Bucket{
		0: {
			"n": set("蘋果", full),
		},
	}

	UpdateEntities(results)

	// A sentinel-joined surface inside a generic bucket never rewrites
	// the noun set.
	assert.Equal(t, set("蘋果", full), results[0]["n"])
}

func TestUpdateEntitiesSingleWordSurfaceIsIgnored(t *testing.T) {
	results := map[int]Bucket{
		0: {
			"n":   set("蘋果"),
			"org": set("蘋果"),
		},
	}

	UpdateEntities(results)
	assert.Equal(t, set("蘋果"), results[0]["n"])
}

func TestEnhancedCleaningRejectRules(t *testing.T) {
	tests := []struct {
		name string
		word string
		keep bool
	}{
		{name: "leading quote", word: "'quoted", keep: false},
		{name: "leading hyphen", word: "-dash", keep: false},
		{name: "embedded slash", word: "a/b", keep: false},
		{name: "embedded comma", word: "a,b", keep: false},
		{name: "short chinese with digit", word: "股票88", keep: false},
		{name: "long chinese with digit", word: "中華電信2412", keep: true},
		{name: "short token with space", word: "a b", keep: false},
		{name: "chinese alnum with space under eight", word: "買A股 76", keep: false},
		{name: "plain entity", word: "台積電", keep: true},
		{name: "english entity", word: "NVIDIA", keep: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := map[int]Bucket{0: {"org": set(tt.word)}}
			cleaned := EnhancedCleaning(results)
			if tt.keep {
				assert.Len(t, cleaned[0]["org"], 1)
			} else {
				assert.Empty(t, cleaned[0]["org"])
			}
		})
	}
}

func TestEnhancedCleaningNormalizesSurfaces(t *testing.T) {
	results := map[int]Bucket{
		0: {"person": set("Patty Chang\n")},
	}
	cleaned := EnhancedCleaning(results)
	assert.Equal(t, set("Patty"+Sentinel+"Chang"), cleaned[0]["person"])
}

func TestEnhancedCleaningIsIdempotent(t *testing.T) {
	results := map[int]Bucket{
		0: {
			"person": set("Patty Chang", "'bad", "台積電"),
			"n":      set("股票88", "中華電信2412"),
		},
		1: {
			"org": set("la mer", "NVIDIA"),
		},
	}

	once := EnhancedCleaning(results)
	twice := EnhancedCleaning(once)
	assert.Equal(t, once, twice)
}

func TestBucketUnionIsSetUnion(t *testing.T) {
	eng := Bucket{"org": set("GOOGLE")}
	ch := Bucket{"org": set("台積電"), "person": set("柯文哲")}

	eng.Union(ch)

	assert.Equal(t, set("GOOGLE", "台積電"), eng["org"])
	assert.Equal(t, set("柯文哲"), eng["person"])
}
