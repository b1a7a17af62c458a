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

// Package textclean strips URLs, emoji and stray markup from social/news
// text before it reaches the tagging models.
package textclean

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// urlPattern needs a negative lookahead to stop a URL match at the start of
// the next one, which the standard library engine cannot express.
var urlPattern = regexp2.MustCompile(
	`\s*((http|https)://|www\.)((?!http://|https://|www\.)[A-Za-z0-9+/=:/?#[\]!$&'()*+,;.%\-_~]|%[0-9a-fA-F]{2})+\s*`,
	regexp2.None,
)

var emojiPattern = regexp.MustCompile(
	"[" +
		"\U0001F600-\U0001F64F" +
		"\U0001F300-\U0001F5FF" +
		"\U0001F680-\U0001F6FF" +
		"\U0001F700-\U0001F77F" +
		"\U0001F780-\U0001F7FF" +
		"\U0001F800-\U0001F8FF" +
		"\U0001F900-\U0001F9FF" +
		"\U0001FA00-\U0001FA6F" +
		"\U0001FA70-\U0001FAFF" +
		"✂-➰" +
		"]+",
)

// repeatedPunct collapses decorative runs such as "----" or "……".
var repeatedPunct = []*regexp.Regexp{
	regexp.MustCompile(`—{2,}`),
	regexp.MustCompile(`-{2,}`),
	regexp.MustCompile(`-={2,}`),
	regexp.MustCompile(`一{2,}`),
	regexp.MustCompile(`&{2,}`),
	regexp.MustCompile(`\.{2,}`),
	regexp.MustCompile(`\+{2,}`),
}

// sharedStrip is replaced with a space in both languages. Order matters:
// "https://." must go before the bare "https"/"http" fallbacks.
var sharedStrip = []string{
	" - ", "\u00a0", ";", "\t", ")", "(", "*", "%", "～", "±", ":", "/",
	"<", ">", "©", "=", "★", "②", "→", "：", "https://.", "https", "http",
}

// englishStrip additionally removes CJK brackets that confuse the English
// models.
var englishStrip = []string{"《", "》", "【", "】", "（", "）"}

// CleanChinese cleans text bound for the Chinese models.
func CleanChinese(text string) string {
	return clean(text, nil)
}

// CleanEnglish cleans text bound for the English models.
func CleanEnglish(text string) string {
	return clean(text, englishStrip)
}

func clean(text string, extraStrip []string) string {
	if out, err := urlPattern.Replace(text, " ", -1, -1); err == nil {
		text = out
	}
	text = emojiPattern.ReplaceAllString(text, " ")
	for _, re := range repeatedPunct {
		text = re.ReplaceAllString(text, " ")
	}
	for _, s := range sharedStrip {
		text = strings.ReplaceAll(text, s, " ")
	}
	for _, s := range extraStrip {
		text = strings.ReplaceAll(text, s, " ")
	}
	return collapseWhitespace(text)
}

// collapseWhitespace squeezes runs of spaces within each line while keeping
// line boundaries, which the clause splitter treats as delimiters.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}
