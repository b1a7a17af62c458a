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

// Package deadline bounds the wall-clock duration of a call. Model inference
// has no intrinsic timeout, so callers wrap the invocation here.
package deadline

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the wrapped call exceeds its deadline.
var ErrTimeout = errors.New("deadline: execution timed out")

// Run invokes fn with a context that expires after d. When the deadline
// passes before fn returns, Run returns ErrTimeout; fn keeps running until it
// observes the context, and its eventual result is discarded. The timer is
// always released.
func Run(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	runCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(runCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return runCtx.Err()
	}
}
