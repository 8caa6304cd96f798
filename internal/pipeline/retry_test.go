// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 2 consecutive 503 then 200 with baseDelay=250, maxRetries=3 -> exactly 3
// attempts; total sleep within the jittered bound.
func TestSendWithRetry_RetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := SendWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts <= 2 {
			return errors.New("503 service unavailable")
		}
		return nil
	}, 3, 250*time.Millisecond, time.Second, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	// sum_{i=0,1} min(2^i*250,8000) * 1.2 = (250+500)*1.2 = 900ms upper bound;
	// lower bound is the same sum * 0.8 = 600ms.
	require.GreaterOrEqual(t, elapsed, 600*time.Millisecond)
	require.LessOrEqual(t, elapsed, 1500*time.Millisecond)
}

func TestSendWithRetry_FatalErrorPropagatesImmediately(t *testing.T) {
	attempts := 0
	err := SendWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return &FatalError{Err: errors.New("400 bad request")}
	}, 5, 10*time.Millisecond, time.Second, nil)

	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestSendWithRetry_ExhaustsRetriesAndPropagates(t *testing.T) {
	attempts := 0
	err := SendWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("429 too many requests")
	}, 2, 5*time.Millisecond, time.Second, nil)

	require.Error(t, err)
	require.Equal(t, 3, attempts) // i = 0,1,2 (maxRetries=2 => 3 total attempts)
}

func TestSendWithRetry_CallerCancellationAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := SendWithRetry(ctx, func(ctx context.Context) error {
		attempts++
		return errors.New("503")
	}, 10, time.Second, time.Second, nil)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestDefaultClassifier(t *testing.T) {
	require.True(t, DefaultClassifier(errors.New("503 service unavailable")))
	require.True(t, DefaultClassifier(errors.New("request was throttled")))
	require.True(t, DefaultClassifier(context.DeadlineExceeded))
	require.False(t, DefaultClassifier(errors.New("400 bad request")))
	require.False(t, DefaultClassifier(&FatalError{Err: errors.New("403 forbidden")}))
	require.False(t, DefaultClassifier(nil))
}
