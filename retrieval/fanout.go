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


package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Fanout runs independent read-only sub-queries on a shared worker pool.
// Tasks submitted through Fanout must not submit further tasks to it.
type Fanout struct {
	pool    *ants.Pool
	timeout time.Duration
}

// NewFanout creates a fan-out pool with size workers. Every task gets its own
// timeout so one slow sub-query cannot abort its siblings.
func NewFanout(size int, timeout time.Duration) (*Fanout, error) {
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &Fanout{pool: pool, timeout: timeout}, nil
}

// Release releases the worker pool.
func (f *Fanout) Release() {
	f.pool.Release()
}

// fanOut runs fn for 0..n-1 and returns results and errors by index, so the
// outcome never depends on completion order. Cancelling ctx cancels every task.
func fanOut[T any](ctx context.Context, f *Fanout, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, []error) {
	results := make([]T, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			callCtx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()
			results[i], errs[i] = fn(callCtx, i)
		}
		if err := f.pool.Submit(task); err != nil {
			// Pool closed: run on the caller's goroutine.
			task()
		}
	}
	wg.Wait()
	return results, errs
}
