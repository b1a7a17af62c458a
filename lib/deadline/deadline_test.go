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

package deadline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the function result before the deadline", func(t *testing.T) {
		err := Run(ctx, time.Second, func(context.Context) error {
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("propagates the function error", func(t *testing.T) {
		sentinel := errors.New("model failure")
		err := Run(ctx, time.Second, func(context.Context) error {
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("times out a slow function", func(t *testing.T) {
		err := Run(ctx, 10*time.Millisecond, func(runCtx context.Context) error {
			select {
			case <-time.After(5 * time.Second):
				return nil
			case <-runCtx.Done():
				return runCtx.Err()
			}
		})
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("parent cancellation is not reported as a timeout", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		err := Run(cancelCtx, time.Second, func(runCtx context.Context) error {
			<-runCtx.Done()
			return runCtx.Err()
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("the wrapped context carries the deadline", func(t *testing.T) {
		err := Run(ctx, time.Second, func(runCtx context.Context) error {
			deadline, ok := runCtx.Deadline()
			if !ok || time.Until(deadline) > time.Second {
				return errors.New("missing deadline")
			}
			return nil
		})
		assert.NoError(t, err)
	})
}
