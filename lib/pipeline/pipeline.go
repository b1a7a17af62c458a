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

// Package pipeline orchestrates the bilingual extraction flow: cleaned input
// preparation, the concurrent English and Chinese model passes, index
// remapping of flat model output back onto per-text slots, and the final
// bucket merge.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nutsam/ner-model/lib/decode"
	"github.com/nutsam/ner-model/lib/extract"
	"github.com/nutsam/ner-model/lib/langsplit"
	"github.com/nutsam/ner-model/lib/tagging"
	"github.com/nutsam/ner-model/lib/textclean"
)

// maxInputLen bounds model input, a hard window of the wrapped checkpoints.
const maxInputLen = 512

// placeholder stands in for empty cleaned text and empty mixed-clause slots so
// index alignment with the input stays 1:1.
const placeholder = "-"

// Segmenter splits Chinese texts into word lists.
type Segmenter interface {
	Segment(ctx context.Context, texts []string, opts tagging.CallOptions) ([][]string, error)
}

// POSTagger labels word lists 1:1.
type POSTagger interface {
	Tag(ctx context.Context, wordLists [][]string, opts tagging.CallOptions) ([][]string, error)
}

// NERChunker decodes texts into entity spans.
type NERChunker interface {
	Chunk(ctx context.Context, texts []string, opts tagging.CallOptions) ([][]decode.NerToken, error)
	Scheme() decode.Scheme
}

// EnglishPOS tags English sentences into aggregated (word, group) pairs.
type EnglishPOS interface {
	Tag(ctx context.Context, texts []string, opts tagging.CallOptions) ([][]tagging.WordTag, error)
}

// EnglishNER extracts tag-to-surfaces maps from English sentences.
type EnglishNER interface {
	Recognize(ctx context.Context, texts []string, opts tagging.CallOptions) ([]map[string][]string, error)
}

// Config wires the five model drivers and the pipeline knobs.
type Config struct {
	Segmenter  Segmenter
	POSTagger  POSTagger
	NERChunker NERChunker
	EnglishPOS EnglishPOS
	EnglishNER EnglishNER

	// BatchSizeChinese is the mini-batch size for the Chinese models.
	BatchSizeChinese int
	// BatchSizeEnglish is the mini-batch size for the English models.
	BatchSizeEnglish int
	// MaxSurfaceLen overrides the extraction surface-length cap when positive.
	MaxSurfaceLen int

	// Logger for logging (nil = no logging)
	Logger *zap.Logger
}

// Pipeline runs the dual-language extraction flow.
type Pipeline struct {
	segmenter Segmenter
	posTagger POSTagger
	chunker   NERChunker
	engPOS    EnglishPOS
	engNER    EnglishNER

	batchCh       int
	batchEn       int
	maxSurfaceLen int
	logger        *zap.Logger
}

// New builds a pipeline. All five drivers are required: a nil driver means its
// model artifact failed to load, and that must surface here, not at call time.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Segmenter == nil || cfg.POSTagger == nil || cfg.NERChunker == nil {
		return nil, fmt.Errorf("chinese drivers are required")
	}
	if cfg.EnglishPOS == nil || cfg.EnglishNER == nil {
		return nil, fmt.Errorf("english drivers are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		segmenter:     cfg.Segmenter,
		posTagger:     cfg.POSTagger,
		chunker:       cfg.NERChunker,
		engPOS:        cfg.EnglishPOS,
		engNER:        cfg.EnglishNER,
		batchCh:       cfg.BatchSizeChinese,
		batchEn:       cfg.BatchSizeEnglish,
		maxSurfaceLen: cfg.MaxSurfaceLen,
		logger:        logger,
	}, nil
}

// RunOptions carry the per-invocation knobs.
type RunOptions struct {
	// UseBatch runs all texts through the models at once; otherwise the
	// pipeline runs one text at a time.
	UseBatch bool
	// MaxLength bounds the units fed to the Chinese models per row.
	MaxLength int
	// UseDelim splits Chinese sentences on the delimiter set before windowing.
	UseDelim bool
	// ShowProgress renders a progress bar while model batches run.
	ShowProgress bool
}

// Inputs is the model-ready form of a batch of texts. EngTexts is sparse
// (EngIndices maps each entry to its text); MixTexts is dense with placeholder
// slots so MixIndices is always the identity.
type Inputs struct {
	Cleaned    []string
	EngTexts   []string
	EngIndices []int
	MixTexts   []string
	MixIndices []int
}

// Results holds per-text model output, every slice sized to the input count.
type Results struct {
	Cleaned []string

	EnglishWS  [][]string
	EnglishPOS [][]string
	EnglishNER []map[string][]string

	ChineseWS  [][]string
	ChinesePOS [][]string
	ChineseNER [][]decode.NerToken
}

// PrepareInputs cleans each text and splits its English rendering into
// English-only and mixed clause groups, truncated to the model window.
func (p *Pipeline) PrepareInputs(texts []string) Inputs {
	start := time.Now()
	in := Inputs{Cleaned: make([]string, 0, len(texts))}
	for idx, text := range texts {
		cleanedCh := textclean.CleanChinese(text)
		if cleanedCh == "" {
			cleanedCh = placeholder
		}
		in.Cleaned = append(in.Cleaned, cleanedCh)

		cleanedEn := textclean.CleanEnglish(text)
		if cleanedEn == "" {
			cleanedEn = placeholder
		}
		var eng, mix []string
		for _, clause := range langsplit.Split(cleanedEn) {
			switch clause.Class {
			case langsplit.ClassEnglish:
				eng = append(eng, clause.Text)
			case langsplit.ClassMixed:
				mix = append(mix, clause.Text)
			}
		}

		if len(eng) > 0 {
			in.EngTexts = append(in.EngTexts, truncateRunes(strings.Join(eng, ",")+".", maxInputLen))
			in.EngIndices = append(in.EngIndices, idx)
		}
		if len(mix) > 0 {
			in.MixTexts = append(in.MixTexts, truncateRunes(strings.Join(mix, ",")+".", maxInputLen))
		} else {
			in.MixTexts = append(in.MixTexts, placeholder)
		}
		in.MixIndices = append(in.MixIndices, idx)
	}
	RecordStageDuration("prepare", time.Since(start).Seconds())
	return in
}

// PredictEnglish runs the English POS and NER drivers over the sentences and
// remaps the flat output onto numTexts per-text slots via indices. Slots with
// no sentence stay empty, never nil.
func (p *Pipeline) PredictEnglish(ctx context.Context, texts []string, indices []int, numTexts int) ([][]string, [][]string, []map[string][]string, error) {
	ws := make([][]string, numTexts)
	pos := make([][]string, numTexts)
	ner := make([]map[string][]string, numTexts)
	for i := 0; i < numTexts; i++ {
		ws[i] = []string{}
		pos[i] = []string{}
		ner[i] = map[string][]string{}
	}
	if len(texts) == 0 {
		return ws, pos, ner, nil
	}

	opts := tagging.CallOptions{BatchSize: p.batchEn}
	posPreds, err := p.engPOS.Tag(ctx, texts, opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("english POS: %w", err)
	}
	nerPreds, err := p.engNER.Recognize(ctx, texts, opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("english NER: %w", err)
	}

	for i, text := range texts {
		orig := indices[i]
		upper := strings.ToUpper(text)
		for _, wt := range posPreds[i] {
			word := strings.ToUpper(strings.TrimSpace(wt.Word))
			if word == "" || !strings.Contains(upper, word) {
				continue
			}
			ws[orig] = append(ws[orig], word)
			pos[orig] = append(pos[orig], wt.EntityGroup)
		}
		for tag, surfaces := range nerPreds[i] {
			for _, s := range surfaces {
				if w := strings.ToUpper(strings.TrimSpace(s)); w != "" {
					ner[orig][tag] = append(ner[orig][tag], w)
				}
			}
		}
	}
	return ws, pos, ner, nil
}

// ProcessChinese runs segmentation, POS over the resulting words, and NER over
// each text, then strips pure-ASCII artifacts from all three outputs.
func (p *Pipeline) ProcessChinese(ctx context.Context, texts []string, opts RunOptions) ([][]string, [][]string, [][]decode.NerToken, error) {
	chOpts := tagging.CallOptions{
		BatchSize:    p.batchCh,
		MaxLength:    opts.MaxLength,
		UseDelim:     opts.UseDelim,
		ShowProgress: opts.ShowProgress,
	}

	ws, err := p.segmenter.Segment(ctx, texts, chOpts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("segmenting: %w", err)
	}

	posOpts := chOpts
	posOpts.UseDelim = false
	pos, err := p.posTagger.Tag(ctx, ws, posOpts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("POS tagging: %w", err)
	}

	ner, err := p.chunker.Chunk(ctx, texts, chOpts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("NER chunking: %w", err)
	}

	fws, fpos, fner := FilterChinese(ws, pos, ner)
	return fws, fpos, fner, nil
}

// FilterChinese removes pure-ASCII alphanumeric tokens from Chinese model
// output; those surfaces belong to the English pass.
func FilterChinese(ws [][]string, pos [][]string, ner [][]decode.NerToken) ([][]string, [][]string, [][]decode.NerToken) {
	fws := make([][]string, len(ws))
	fpos := make([][]string, len(ws))
	for i, tokens := range ws {
		kw := []string{}
		kp := []string{}
		for j, token := range tokens {
			if isASCIIArtifact(token) {
				continue
			}
			kw = append(kw, token)
			if j < len(pos[i]) {
				kp = append(kp, pos[i][j])
			}
		}
		fws[i] = kw
		fpos[i] = kp
	}

	fner := make([][]decode.NerToken, len(ner))
	for i, ents := range ner {
		kept := []decode.NerToken{}
		for _, ent := range ents {
			if !isASCIIArtifact(ent.Word) {
				kept = append(kept, ent)
			}
		}
		fner[i] = kept
	}
	return fws, fpos, fner
}

// isASCIIArtifact reports whether a token, spaces removed, is entirely ASCII
// letters and digits. Empty tokens count as artifacts.
func isASCIIArtifact(token string) bool {
	token = strings.ReplaceAll(token, " ", "")
	for _, r := range token {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

// Run executes one pipeline pass over the texts. The English and Chinese
// passes share no mutable state and run concurrently.
func (p *Pipeline) Run(ctx context.Context, texts []string, opts RunOptions) (*Results, error) {
	in := p.PrepareInputs(texts)
	res := &Results{Cleaned: in.Cleaned}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		defer func() { RecordStageDuration("english", time.Since(start).Seconds()) }()

		engWS, engPOS, engNER, err := p.PredictEnglish(gctx, in.EngTexts, in.EngIndices, len(texts))
		if err != nil {
			return err
		}
		mixWS, mixPOS, mixNER, err := p.PredictEnglish(gctx, in.MixTexts, in.MixIndices, len(texts))
		if err != nil {
			return err
		}

		res.EnglishWS = make([][]string, len(texts))
		res.EnglishPOS = make([][]string, len(texts))
		res.EnglishNER = make([]map[string][]string, len(texts))
		for i := range texts {
			res.EnglishWS[i] = append(engWS[i], mixWS[i]...)
			res.EnglishPOS[i] = append(engPOS[i], mixPOS[i]...)
			merged := map[string][]string{}
			for tag, words := range engNER[i] {
				merged[tag] = words
			}
			// Mixed-clause results win per tag on overlap.
			for tag, words := range mixNER[i] {
				merged[tag] = words
			}
			res.EnglishNER[i] = merged
		}
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		defer func() { RecordStageDuration("chinese", time.Since(start).Seconds()) }()

		ws, pos, ner, err := p.ProcessChinese(gctx, in.Cleaned, opts)
		if err != nil {
			return err
		}
		res.ChineseWS = ws
		res.ChinesePOS = pos
		res.ChineseNER = ner
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Debug("Pipeline pass complete",
		zap.Int("num_texts", len(texts)),
		zap.Int("num_english_inputs", len(in.EngTexts)))
	return res, nil
}

// Extract runs the full flow and returns the cleaned entity buckets per input
// index. With UseBatch unset each text goes through its own pipeline pass.
func (p *Pipeline) Extract(ctx context.Context, texts []string, opts RunOptions) (map[int]extract.Bucket, error) {
	raw := make(map[int]extract.Bucket, len(texts))

	if opts.UseBatch {
		RecordTextsProcessed("batch", len(texts))
		res, err := p.Run(ctx, texts, opts)
		if err != nil {
			return nil, err
		}
		for idx := range texts {
			raw[idx] = p.combine(res, idx)
		}
	} else {
		RecordTextsProcessed("single", len(texts))
		for idx, text := range texts {
			res, err := p.Run(ctx, []string{text}, opts)
			if err != nil {
				return nil, err
			}
			raw[idx] = p.combine(res, 0)
		}
	}

	start := time.Now()
	cleaned := extract.EnhancedCleaning(extract.UpdateEntities(raw))
	RecordStageDuration("extract", time.Since(start).Seconds())

	for _, bucket := range cleaned {
		for label, words := range bucket {
			RecordEntitiesEmitted(label, len(words))
		}
	}
	return cleaned, nil
}

// combine builds the per-text bucket: English POS entities unioned with the
// Chinese POS and NER entities. English NER output stays out of the buckets,
// matching the reference results; callers wanting it read Results.EnglishNER.
func (p *Pipeline) combine(res *Results, idx int) extract.Bucket {
	exOpts := extract.Options{
		FinetunedBIO:  p.chunker.Scheme() == decode.SchemeFinetunedBIO,
		MaxSurfaceLen: p.maxSurfaceLen,
	}
	bucket := extract.FromTokens(res.EnglishWS[idx], res.EnglishPOS[idx], nil, exOpts)
	bucket.Union(extract.FromTokens(res.ChineseWS[idx], res.ChinesePOS[idx], res.ChineseNER[idx], exOpts))
	return bucket
}

// truncateRunes bounds s to n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
