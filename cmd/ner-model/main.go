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

// Command ner-model extracts named entities from bilingual Chinese/English
// texts using local ONNX token-classification checkpoints.
//
// Usage:
//
//	ner-model extract texts.txt       # Extract entities, one text per line
//	ner-model pull <model>            # Download a model archive
//	ner-model list                    # List local models
//	ner-model list --remote           # List models available for download
package main

import (
	"github.com/nutsam/ner-model/cmd/ner-model/cmd"
)

// version is set by the release build via ldflags.
var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
