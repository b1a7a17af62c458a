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
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull <model-name> [model-name...]",
	Short: "Pull model archive(s) into the local cache",
	Long: `Download one or more model archives and extract them into the local
model cache (default ~/.ner-model/models).

Examples:
  # Pull the default Chinese checkpoint
  ner-model pull bert_tiny

  # Pull the full bilingual set
  ner-model pull bert_tiny eng_ontonotes eng_vblagoje_pos

  # Pull everything in the registry
  ner-model pull --all`,
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)

	pullCmd.Flags().Bool("all", false, "pull every registered model")
}

func runPull(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("requires a model name or --all")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	reg, err := newRegistry(true, logger)
	if err != nil {
		return err
	}

	if all {
		return reg.PullAll(ctx)
	}
	for _, name := range args {
		fmt.Printf("\n=== Pulling %s ===\n", name)
		if err := reg.Pull(ctx, name); err != nil {
			return fmt.Errorf("failed to pull %s: %w", name, err)
		}
	}
	return nil
}
