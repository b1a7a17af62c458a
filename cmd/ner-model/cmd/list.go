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
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List models",
	Long: `List models in the local cache.

Use --remote to show the models registered for download instead.

Examples:
  # List local models
  ner-model list

  # List models available for download
  ner-model list --remote`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Bool("remote", false, "list registered models instead of local ones")
}

func runList(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	reg, err := newRegistry(false, logger)
	if err != nil {
		return err
	}

	remote, _ := cmd.Flags().GetBool("remote")
	if remote {
		for _, name := range reg.Registered() {
			marker := " "
			if reg.Exists(name) {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		return nil
	}

	names, err := reg.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No local models. Run 'ner-model pull <model>' to download one.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
