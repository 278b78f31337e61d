// Copyright 2025 Poiesic Systems
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


package reembed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/quarry/core"
)

// Backoff is a bounded exponential retry policy.
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Delay is the wait after the first failure. It doubles after every further failure.
	Delay time.Duration
	// MaxDelay caps the wait between tries. Zero means no cap.
	MaxDelay time.Duration
}

// Retry calls operation until it succeeds, fails permanently, or the attempts
// run out. The last error is returned unchanged.
//
// Context errors, dimension mismatches and missing tenants are permanent: the
// same call would fail the same way again.
func (b Backoff) Retry(ctx context.Context, logger *slog.Logger, operation func() error) error {
	if b.Attempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	delay := b.Delay
	for attempt := 1; attempt <= b.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if permanent(lastErr) {
			return lastErr
		}
		if attempt == b.Attempts {
			break
		}
		logger.Debug("operation failed, will retry", "attempt", attempt, "max_attempts", b.Attempts, "delay", delay, "err", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
	return lastErr
}

func permanent(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, core.ErrDimensionMismatch) ||
		errors.Is(err, core.ErrMissingTenant)
}
