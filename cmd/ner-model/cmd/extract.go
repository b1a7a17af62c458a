// Copyright 2025 The ner-model Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nutsam/ner-model/lib/deadline"
	"github.com/nutsam/ner-model/lib/extract"
	"github.com/nutsam/ner-model/lib/modelregistry"
	"github.com/nutsam/ner-model/lib/pipeline"
	"github.com/nutsam/ner-model/lib/tagging"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract named entities from texts",
	Long: `Extract named entities from texts, one text per line.

Reads from the given file, or stdin when no file is given, and writes a JSON
object mapping each input line index to its entity buckets.

Examples:
  # Extract from a file with the default models
  ner-model extract texts.txt

  # Extract from stdin with the finetuned NER checkpoint
  cat texts.txt | ner-model extract --ner-model BIO_finetune_pink_msra

  # Batch all lines through the models at once
  ner-model extract --use-batch texts.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("ner-model", "bert_tiny", "Chinese NER model name")
	extractCmd.Flags().String("bert-model", "bert_tiny", "Chinese WS/POS model name")
	extractCmd.Flags().String("eng-pos-model", "eng_vblagoje_pos", "English POS model name")
	extractCmd.Flags().String("eng-ner-model", "eng_ontonotes", "English NER model name")
	extractCmd.Flags().String("onnx-lib", "", "path to the onnxruntime shared library")
	extractCmd.Flags().Int("batch-size-ch", 256, "Chinese model mini-batch size")
	extractCmd.Flags().Int("batch-size-en", 32, "English model mini-batch size")
	extractCmd.Flags().Int("max-length", 512, "model input window in units")
	extractCmd.Flags().Int("pool-size", 0, "Chinese NER session pool size (0 = CPU count)")
	extractCmd.Flags().Bool("use-batch", false, "run all texts through the models at once")
	extractCmd.Flags().Bool("use-delim", true, "split sentences on punctuation before windowing")
	extractCmd.Flags().Bool("show-progress", false, "render a progress bar while batches run")
	extractCmd.Flags().Duration("timeout", 0, "bound the extraction wall-clock time (0 = none)")

	mustBindPFlag("ner_model", extractCmd.Flags().Lookup("ner-model"))
	mustBindPFlag("bert_model", extractCmd.Flags().Lookup("bert-model"))
	mustBindPFlag("eng_pos_model", extractCmd.Flags().Lookup("eng-pos-model"))
	mustBindPFlag("eng_ner_model", extractCmd.Flags().Lookup("eng-ner-model"))
	mustBindPFlag("onnx_lib", extractCmd.Flags().Lookup("onnx-lib"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	texts, err := readLines(args)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no input texts")
	}

	showProgress, _ := cmd.Flags().GetBool("show-progress")
	reg, err := newRegistry(showProgress, logger)
	if err != nil {
		return err
	}

	if lib := viper.GetString("onnx_lib"); lib != "" {
		if err := tagging.InitRuntime(lib); err != nil {
			return fmt.Errorf("initializing onnxruntime: %w", err)
		}
	}

	p, closeAll, err := buildPipeline(cmd, reg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	maxLength, _ := cmd.Flags().GetInt("max-length")
	useBatch, _ := cmd.Flags().GetBool("use-batch")
	useDelim, _ := cmd.Flags().GetBool("use-delim")
	opts := pipeline.RunOptions{
		UseBatch:     useBatch,
		MaxLength:    maxLength,
		UseDelim:     useDelim,
		ShowProgress: showProgress,
	}

	var buckets map[int]extract.Bucket
	run := func(runCtx context.Context) error {
		var runErr error
		buckets, runErr = p.Extract(runCtx, texts, opts)
		return runErr
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	start := time.Now()
	if timeout > 0 {
		err = deadline.Run(ctx, timeout, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return err
	}
	logger.Info("Extraction complete",
		zap.Int("num_texts", len(texts)),
		zap.Duration("duration", time.Since(start)))

	return writeJSON(buckets)
}

// buildPipeline loads the five drivers from the local model cache.
func buildPipeline(cmd *cobra.Command, reg *modelregistry.Registry, logger *zap.Logger) (*pipeline.Pipeline, func(), error) {
	nerModel := viper.GetString("ner_model")
	bertModel := viper.GetString("bert_model")
	engPOSModel := viper.GetString("eng_pos_model")
	engNERModel := viper.GetString("eng_ner_model")

	maxLength, _ := cmd.Flags().GetInt("max-length")
	poolSize, _ := cmd.Flags().GetInt("pool-size")
	batchCh, _ := cmd.Flags().GetInt("batch-size-ch")
	batchEn, _ := cmd.Flags().GetInt("batch-size-en")

	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("Failed to close classifier", zap.Error(err))
			}
		}
	}
	fail := func(err error) (*pipeline.Pipeline, func(), error) {
		closeAll()
		return nil, nil, err
	}

	bertDir, err := reg.Resolve(bertModel)
	if err != nil {
		return fail(err)
	}
	wsClassifier, err := tagging.NewONNXClassifier(tagging.ONNXConfig{
		ModelPath: filepath.Join(bertDir, "ws"),
		MaxLength: maxLength,
		Logger:    logger.Named("ws"),
	})
	if err != nil {
		return fail(fmt.Errorf("loading WS model: %w", err))
	}
	closers = append(closers, wsClassifier.Close)

	posClassifier, err := tagging.NewONNXClassifier(tagging.ONNXConfig{
		ModelPath: filepath.Join(bertDir, "pos"),
		MaxLength: maxLength,
		Logger:    logger.Named("pos"),
	})
	if err != nil {
		return fail(fmt.Errorf("loading POS model: %w", err))
	}
	closers = append(closers, posClassifier.Close)

	nerDir, err := reg.Resolve(nerModel)
	if err != nil {
		return fail(err)
	}
	nerClassifier, err := tagging.NewPooledClassifier(tagging.PoolConfig{
		ModelPath: filepath.Join(nerDir, "ner"),
		PoolSize:  poolSize,
		MaxLength: maxLength,
		Logger:    logger.Named("ner"),
	})
	if err != nil {
		return fail(fmt.Errorf("loading NER model: %w", err))
	}
	closers = append(closers, nerClassifier.Close)

	engPOSDir, err := reg.Resolve(engPOSModel)
	if err != nil {
		return fail(err)
	}
	engPOSClassifier, err := tagging.NewONNXClassifier(tagging.ONNXConfig{
		ModelPath: engPOSDir,
		MaxLength: maxLength,
		Logger:    logger.Named("eng_pos"),
	})
	if err != nil {
		return fail(fmt.Errorf("loading English POS model: %w", err))
	}
	closers = append(closers, engPOSClassifier.Close)

	engNERDir, err := reg.Resolve(engNERModel)
	if err != nil {
		return fail(err)
	}
	engNERClassifier, err := tagging.NewONNXClassifier(tagging.ONNXConfig{
		ModelPath: engNERDir,
		MaxLength: maxLength,
		Logger:    logger.Named("eng_ner"),
	})
	if err != nil {
		return fail(fmt.Errorf("loading English NER model: %w", err))
	}
	closers = append(closers, engNERClassifier.Close)

	p, err := pipeline.New(pipeline.Config{
		Segmenter:        tagging.NewWordSegmenter(wsClassifier, logger),
		POSTagger:        tagging.NewPOSTagger(posClassifier, logger),
		NERChunker:       tagging.NewNERChunker(nerClassifier, nerModel, logger),
		EnglishPOS:       tagging.NewEnglishPOS(engPOSClassifier, logger),
		EnglishNER:       tagging.NewEnglishNER(engNERClassifier, engNERModel, logger),
		BatchSizeChinese: batchCh,
		BatchSizeEnglish: batchEn,
		Logger:           logger,
	})
	if err != nil {
		return fail(err)
	}
	return p, closeAll, nil
}

// readLines reads non-empty lines from the file argument or stdin.
func readLines(args []string) ([]string, error) {
	in := os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	var texts []string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return texts, nil
}

// writeJSON prints the buckets as a JSON object keyed by input index, with
// the word sets rendered as sorted arrays.
func writeJSON(buckets map[int]extract.Bucket) error {
	out := make(map[int]map[string][]string, len(buckets))
	for idx, bucket := range buckets {
		entry := make(map[string][]string, len(bucket))
		for label := range bucket {
			words := bucket.Words(label)
			sort.Strings(words)
			entry[label] = words
		}
		out[idx] = entry
	}

	data, err := sonic.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
