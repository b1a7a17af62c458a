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

package textclean

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanChinese(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips URLs",
			in:   "我的頻道 https://www.youtube.com/c/Toyz69 歡迎訂閱",
			want: "我的頻道 歡迎訂閱",
		},
		{
			name: "strips emoji",
			in:   "🌟 合作信箱 🌟 你好",
			want: "合作信箱 你好",
		},
		{
			name: "collapses repeated punctuation",
			in:   "標題......內文----結尾",
			want: "標題 內文 結尾",
		},
		{
			name: "replaces listed symbols",
			in:   "比例50%（約一半）",
			want: "比例50 （約一半）",
		},
		{
			name: "keeps line boundaries while squeezing spaces",
			in:   "第一行   有 空白\n第二行",
			want: "第一行 有 空白\n第二行",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanChinese(tt.in))
		})
	}
}

func TestCleanEnglishRemovesCJKBrackets(t *testing.T) {
	got := CleanEnglish("watch 《Dune》 tonight")
	assert.Equal(t, "watch Dune tonight", got)

	// The Chinese variant keeps them.
	assert.Contains(t, CleanChinese("watch 《Dune》 tonight"), "《")
}

func TestCleanDropsBareSchemeWords(t *testing.T) {
	got := CleanEnglish("broken link http somewhere")
	assert.NotContains(t, got, "http")
}

func TestCleanConsecutiveURLs(t *testing.T) {
	in := "a https://one.example.com https://two.example.com b"
	got := CleanChinese(in)
	assert.NotContains(t, got, "example.com")
	assert.True(t, strings.HasPrefix(got, "a"))
	assert.True(t, strings.HasSuffix(got, "b"))
}
