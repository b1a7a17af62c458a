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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gomlx/go-huggingface/tokenizers"
	"github.com/gomlx/go-huggingface/tokenizers/api"
	"github.com/gomlx/go-huggingface/tokenizers/hftokenizer"
	"github.com/schollz/progressbar/v2"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var ortInit sync.Once

// InitRuntime initializes the shared onnxruntime environment. Safe to call
// more than once; only the first call takes effect.
func InitRuntime(sharedLibPath string) error {
	var err error
	ortInit.Do(func() {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		err = ort.InitializeEnvironment()
	})
	return err
}

// ONNXConfig configures an ONNXClassifier.
type ONNXConfig struct {
	// ModelPath is the model directory (ONNX file, config.json, tokenizer).
	ModelPath string

	// ONNXFile overrides the model file name (default model.onnx).
	ONNXFile string

	// MaxLength is the default window when a call does not set one.
	MaxLength int

	// Logger for logging (nil = no logging).
	Logger *zap.Logger
}

// ONNXClassifier scores sentence units with a local token-classification
// checkpoint through onnxruntime. Each unit is encoded independently so the
// alignment from unit to logits row is exact, the way the character-level
// Chinese checkpoints were trained.
type ONNXClassifier struct {
	session   *ort.DynamicAdvancedSession
	tokenizer tokenizers.Tokenizer
	id2label  map[int]string
	numLabels int
	maxLength int
	logger    *zap.Logger

	unkID int64
	clsID int64
	sepID int64
	padID int64

	mu        sync.Mutex
	closeOnce sync.Once
	closed    bool
}

// Ensure ONNXClassifier implements TokenClassifier.
var _ TokenClassifier = (*ONNXClassifier)(nil)

// NewONNXClassifier loads a token-classification model directory.
func NewONNXClassifier(cfg ONNXConfig) (*ONNXClassifier, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	onnxFile := cfg.ONNXFile
	if onnxFile == "" {
		onnxFile = "model.onnx"
	}
	modelFile := filepath.Join(cfg.ModelPath, onnxFile)
	if _, err := os.Stat(modelFile); err != nil {
		return nil, fmt.Errorf("model file %s: %w", modelFile, err)
	}

	id2label, err := loadID2Label(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("loading label table: %w", err)
	}

	tokenizer, err := loadTokenizer(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelFile,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		nil)
	if err != nil {
		return nil, fmt.Errorf("creating onnx session: %w", err)
	}

	c := &ONNXClassifier{
		session:   session,
		tokenizer: tokenizer,
		id2label:  id2label,
		numLabels: len(id2label),
		maxLength: cfg.MaxLength,
		logger:    logger,
		unkID:     specialID(tokenizer, api.TokUnknown),
		clsID:     specialID(tokenizer, api.TokBeginningOfSentence),
		sepID:     specialID(tokenizer, api.TokEndOfSentence),
		padID:     specialID(tokenizer, api.TokPad),
	}
	if c.unkID < 0 {
		c.unkID = 0
	}
	if c.padID < 0 {
		c.padID = 0
	}

	logger.Info("Loaded token classifier",
		zap.String("modelPath", cfg.ModelPath),
		zap.Int("numLabels", c.numLabels))
	return c, nil
}

// ID2Label returns the model's label table.
func (c *ONNXClassifier) ID2Label() map[int]string {
	return c.id2label
}

// classifierRow is one model invocation: a windowed chunk of one sentence.
type classifierRow struct {
	ids      []int64
	sentence int
	units    []int // unit positions fed, in order
	offset   int   // leading special tokens before the first unit
}

// Classify scores all units of all sentences. See TokenClassifier.
func (c *ONNXClassifier) Classify(ctx context.Context, sentences [][]string, opts CallOptions) (*Result, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = c.maxLength
	}
	if maxLength <= 0 {
		maxLength = 512
	}

	res := &Result{Alignments: make([][]int, len(sentences))}
	rows := []classifierRow{}
	for i, units := range sentences {
		res.Alignments[i] = make([]int, len(units))
		for j := range res.Alignments[i] {
			res.Alignments[i][j] = -1
		}
		for _, chunk := range c.chunkUnits(units, opts) {
			rows = append(rows, c.buildRow(i, units, chunk, maxLength))
		}
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress {
		bar = progressbar.New(len(rows))
	}

	batchSize := opts.batchSize()
	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := lo + batchSize
		if hi > len(rows) {
			hi = len(rows)
		}
		if err := c.runBatch(rows[lo:hi], res); err != nil {
			return nil, fmt.Errorf("running batch %d: %w", lo/batchSize, err)
		}
		if bar != nil {
			_ = bar.Add(hi - lo)
		}
	}

	return res, nil
}

// chunkUnits splits a sentence's unit positions into model rows. With
// UseDelim, a chunk ends after each delimiter unit.
func (c *ONNXClassifier) chunkUnits(units []string, opts CallOptions) [][]int {
	all := make([]int, len(units))
	for i := range units {
		all[i] = i
	}
	if !opts.UseDelim {
		if len(all) == 0 {
			return nil
		}
		return [][]int{all}
	}

	delims := opts.delims()
	chunks := [][]int{}
	start := 0
	for i, u := range units {
		if len([]rune(u)) == 1 && strings.ContainsRune(delims, []rune(u)[0]) {
			chunks = append(chunks, all[start:i+1])
			start = i + 1
		}
	}
	if start < len(all) {
		chunks = append(chunks, all[start:])
	}
	return chunks
}

// buildRow encodes one chunk. Whitespace units and units beyond the window
// are left out and keep their -1 alignment.
func (c *ONNXClassifier) buildRow(sentence int, units []string, chunk []int, maxLength int) classifierRow {
	// Room for [CLS] and [SEP].
	window := maxLength - 2
	row := classifierRow{sentence: sentence}
	if c.clsID >= 0 {
		row.ids = append(row.ids, c.clsID)
		row.offset = 1
	}
	for _, pos := range chunk {
		if len(row.units) >= window {
			break
		}
		if isWhitespaceUnit(units[pos]) {
			continue
		}
		row.ids = append(row.ids, c.encodeUnit(units[pos]))
		row.units = append(row.units, pos)
	}
	if c.sepID >= 0 {
		row.ids = append(row.ids, c.sepID)
	}
	return row
}

// encodeUnit maps a single unit to one vocabulary ID, stripping any special
// tokens the tokenizer wraps around it.
func (c *ONNXClassifier) encodeUnit(unit string) int64 {
	ids := c.tokenizer.Encode(unit)
	for _, id := range ids {
		v := int64(id)
		if v == c.clsID || v == c.sepID {
			continue
		}
		return v
	}
	return c.unkID
}

// runBatch executes one mini-batch and appends logits rows to res.
func (c *ONNXClassifier) runBatch(rows []classifierRow, res *Result) error {
	if len(rows) == 0 {
		return nil
	}

	seqLen := 0
	for _, r := range rows {
		if len(r.ids) > seqLen {
			seqLen = len(r.ids)
		}
	}

	n := len(rows)
	inputIDs := make([]int64, n*seqLen)
	attentionMask := make([]int64, n*seqLen)
	tokenTypeIDs := make([]int64, n*seqLen)
	for i, r := range rows {
		base := i * seqLen
		for j := 0; j < seqLen; j++ {
			if j < len(r.ids) {
				inputIDs[base+j] = r.ids[j]
				attentionMask[base+j] = 1
			} else {
				inputIDs[base+j] = c.padID
			}
		}
	}

	shape := ort.NewShape(int64(n), int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return fmt.Errorf("creating input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return fmt.Errorf("creating attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return fmt.Errorf("creating token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := c.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return fmt.Errorf("onnx inference: %w", err)
	}
	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return fmt.Errorf("unexpected logits tensor type %T", outputs[0])
	}
	defer logitsTensor.Destroy()

	data := logitsTensor.GetData()
	dims := logitsTensor.GetShape()
	if len(dims) != 3 {
		return fmt.Errorf("unexpected logits shape %v", dims)
	}
	outSeq := int(dims[1])
	numLabels := int(dims[2])

	for i, r := range rows {
		for p, unitPos := range r.units {
			at := (i*outSeq + p + r.offset) * numLabels
			if at+numLabels > len(data) {
				continue
			}
			row := make([]float32, numLabels)
			copy(row, data[at:at+numLabels])
			res.Alignments[r.sentence][unitPos] = len(res.Logits)
			res.Logits = append(res.Logits, row)
		}
	}
	return nil
}

// Close destroys the onnx session. Safe to call more than once.
func (c *ONNXClassifier) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		err = c.session.Destroy()
	})
	return err
}

// loadID2Label reads id2label from a HuggingFace config.json.
func loadID2Label(modelPath string) (map[int]string, error) {
	data, err := os.ReadFile(filepath.Join(modelPath, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("reading config.json: %w", err)
	}

	var raw struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config.json: %w", err)
	}
	if len(raw.ID2Label) == 0 {
		return nil, fmt.Errorf("no id2label found in config.json")
	}

	id2label := make(map[int]string, len(raw.ID2Label))
	for idStr, label := range raw.ID2Label {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		id2label[id] = label
	}
	return id2label, nil
}

// loadTokenizer loads the HuggingFace tokenizer.json next to the model.
func loadTokenizer(modelPath string) (tokenizers.Tokenizer, error) {
	var config *api.Config
	configPath := filepath.Join(modelPath, "tokenizer_config.json")
	if content, err := os.ReadFile(configPath); err == nil {
		config, err = api.ParseConfigContent(content)
		if err != nil {
			return nil, fmt.Errorf("parsing tokenizer config: %w", err)
		}
		config.ConfigFile = configPath
	}

	tokenizerJSON := filepath.Join(modelPath, "tokenizer.json")
	if _, err := os.Stat(tokenizerJSON); err != nil {
		return nil, fmt.Errorf("no tokenizer.json in %s", modelPath)
	}
	tok, err := hftokenizer.NewFromFile(config, tokenizerJSON)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer.json: %w", err)
	}
	return tok, nil
}

// specialID resolves a special token ID, or -1 when the vocabulary lacks it.
func specialID(tok tokenizers.Tokenizer, token api.SpecialToken) int64 {
	id, err := tok.SpecialTokenID(token)
	if err != nil {
		return -1
	}
	return int64(id)
}
