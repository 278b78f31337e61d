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


// Package classify maps free-text queries to task types.
//
// The oracle's answer is untrusted. Anything outside the set of known task
// types, and any oracle failure, resolves to core.TaskGeneral.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
)

// Classifier assigns a task type to a query using an ai.Oracle.
type Classifier struct {
	oracle  ai.Oracle
	tasks   func() []core.TaskType
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "classifier")
	}
}

// WithTimeout bounds the oracle call. Default is 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTasks replaces the set of task types the classifier may return.
// core.TaskGeneral is always included.
func WithTasks(tasks ...core.TaskType) Option {
	tasks = slices.Clone(tasks)
	return WithTaskSource(func() []core.TaskType { return tasks })
}

// WithTaskSource makes the classifier ask source for its task types on every
// call, so task types added later are offered to the oracle too.
func WithTaskSource(source func() []core.TaskType) Option {
	return func(c *Classifier) {
		if source != nil {
			c.tasks = source
		}
	}
}

// New creates a classifier. A nil oracle classifies everything as general.
func New(oracle ai.Oracle, opts ...Option) *Classifier {
	c := &Classifier{
		oracle:  oracle,
		timeout: 10 * time.Second,
		logger:  slog.Default().With("component", "classifier"),
	}
	WithTasks(core.TaskTypes...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the task type of text, falling back to core.TaskGeneral.
func (c *Classifier) Classify(ctx context.Context, text string) core.TaskType {
	task, _ := c.ClassifyWithReason(ctx, text)
	return task
}

// ClassifyWithReason returns the task type of text. When it falls back to
// core.TaskGeneral the error says why; the returned task is usable either way.
func (c *Classifier) ClassifyWithReason(ctx context.Context, text string) (core.TaskType, error) {
	if c.oracle == nil {
		return core.TaskGeneral, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := c.oracle.Complete(callCtx, ai.ClassificationPrompt(text, c.Tasks()...))
	if err != nil {
		c.logger.Warn("classification failed, using general retrieval", "err", err)
		return core.TaskGeneral, fmt.Errorf("classify: %w", err)
	}

	task, err := c.Parse(answer)
	if err != nil {
		c.logger.Warn("oracle returned unrecognized task type, using general retrieval",
			"answer", answer)
		return core.TaskGeneral, err
	}
	c.logger.Debug("classified query", "task", task)
	return task, nil
}

// Tasks returns the task types the classifier may return, general first.
func (c *Classifier) Tasks() []core.TaskType {
	tasks := []core.TaskType{core.TaskGeneral}
	for _, t := range c.tasks() {
		if !slices.Contains(tasks, t) {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// Parse validates an oracle answer against the known task types. Only the first
// line of the answer is considered.
func (c *Classifier) Parse(answer string) (core.TaskType, error) {
	known := c.Tasks()
	line, _, _ := strings.Cut(strings.TrimSpace(ai.StripCodeFence(answer)), "\n")
	line = strings.TrimPrefix(strings.TrimSpace(line), "Task type:")

	task, err := core.ParseTaskType(line)
	if err != nil {
		norm := core.TaskType(strings.ToLower(strings.Trim(strings.TrimSpace(line), "\"'`.")))
		if slices.Contains(known, norm) {
			return norm, nil
		}
		return core.TaskGeneral, err
	}
	if !slices.Contains(known, task) {
		return core.TaskGeneral, fmt.Errorf("%w: %q is disabled", core.ErrUnrecognizedTaskType, task)
	}
	return task, nil
}
