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


package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/classify"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/retrieval"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/strategy"
	"github.com/poiesic/quarry/tenant"
)

// Orchestrator answers queries by planning and running retrieval algorithms.
// It is safe for concurrent use. Collaborators are owned by the caller; Close
// releases only the orchestrator's own worker pool.
type Orchestrator struct {
	store      storage.Searcher
	classifier *classify.Classifier
	registry   *strategy.Registry
	executors  map[string]retrieval.Executor
	enhancers  map[string]retrieval.Enhancer
	fanout     *retrieval.Fanout
	options    Options
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator reading from store and calling the
// embedders and oracle of provider.
func NewOrchestrator(store storage.Searcher, provider ai.AIProvider, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	o := &Orchestrator{
		store:    store,
		registry: strategy.NewRegistry(),
		options:  DefaultOptions(),
		logger:   slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	fanout, err := retrieval.NewFanout(o.options.Retrieval.PoolSize, o.options.Retrieval.CallTimeout)
	if err != nil {
		return nil, err
	}
	o.fanout = fanout

	services := &retrieval.Services{
		Store:    store,
		Embedder: retrieval.NewQueryEmbedder(provider, o.logger),
		Oracle:   provider.Oracle(),
		Fanout:   fanout,
		Options:  o.options.Retrieval,
		Logger:   o.logger,
	}
	o.executors = retrieval.Executors(services)
	o.enhancers = retrieval.Enhancers(services)
	o.classifier = classify.New(provider.Oracle(),
		classify.WithLogger(o.logger),
		classify.WithTimeout(o.options.ClassifierTimeout),
		classify.WithTaskSource(o.registry.Tasks),
	)
	return o, nil
}

// Close releases the worker pool.
func (o *Orchestrator) Close() error {
	o.fanout.Release()
	return nil
}

// Registry returns the strategy registry. Rows registered on it apply to later
// queries, including classification.
func (o *Orchestrator) Registry() *strategy.Registry {
	return o.registry
}

// Query answers one request.
//
// A request without a tenant fails with core.ErrMissingTenant before any storage,
// embedding or oracle call. When every planned algorithm fails the error wraps
// core.ErrAllFanoutFailed; any smaller failure is reported on Response.Partial.
func (o *Orchestrator) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if err := tenant.Require(req.Tenant); err != nil {
		metrics.ObserveQuery("", start, "error")
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" && req.SeedDocument == 0 {
		metrics.ObserveQuery("", start, "error")
		return nil, ErrEmptyQuery
	}

	resp := &Response{QueryID: uuid.NewString()}
	logger := o.logger.With("query_id", resp.QueryID, "tenant", req.Tenant)
	tr := &trace{start: start}

	task := o.resolveTask(ctx, req, logger)
	tr.add(StageClassified, string(task), 0, 0, nil)

	plan := o.registry.Resolve(task)
	resp.TaskType = plan.Task
	resp.Strategies = plan.Algorithms
	resp.Enhancements = plan.Enhancements
	resp.ExpectedAccuracy = plan.ExpectedAccuracy
	resp.ExpectedLatency = plan.ExpectedLatency
	tr.add(StagePlanned, strings.Join(plan.Algorithms, ","), len(plan.Algorithms), 0, nil)
	logger.Debug("resolved plan", "task", plan.Task, "algorithms", plan.Algorithms, "enhancements", plan.Enhancements)

	runCtx, cancel := context.WithTimeout(ctx, plan.Budget)
	defer cancel()

	rreq := &retrieval.Request{
		Tenant:       req.Tenant,
		Text:         req.Text,
		Depth:        req.Depth,
		Direction:    req.Direction,
		SeedDocument: req.SeedDocument,
	}

	partial := &PartialFailure{}
	var outputs []*retrieval.Output
	for _, name := range plan.Algorithms {
		out, err := o.runAlgorithm(runCtx, name, plan.Enhancements, rreq, tr, logger)
		if err := ctx.Err(); err != nil {
			metrics.ObserveQuery(string(plan.Task), start, "error")
			return nil, err
		}
		if err != nil {
			logger.Warn("retrieval algorithm failed", "algorithm", name, "err", err)
			metrics.AddFanoutFailures(name, 1)
			partial.algorithm(name, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if out.Partial() {
			logger.Warn("retrieval algorithm returned a partial result", "algorithm", name, "failed", out.Failed)
			metrics.AddFanoutFailures(name, out.Failed)
			partial.subQueries(out.Failed, out.Err)
		}
		resp.SubQueries = append(resp.SubQueries, out.SubQueries...)
		outputs = append(outputs, out)
	}

	if len(outputs) == 0 {
		metrics.ObserveQuery(string(plan.Task), start, "error")
		return nil, fmt.Errorf("%w: %w", core.ErrAllFanoutFailed, partial.Err)
	}

	ranked := retrieval.Aggregate(outputs, o.limit(req.Limit))
	results, err := o.resolve(runCtx, req.Tenant, ranked, logger)
	if err != nil {
		metrics.ObserveQuery(string(plan.Task), start, "error")
		return nil, err
	}
	resp.Results = results
	tr.add(StageAggregated, "", len(results), 0, nil)

	outcome := "ok"
	if !partial.empty() {
		resp.Partial = partial
		outcome = "partial"
	}
	resp.Events = tr.events
	resp.Elapsed = time.Since(start)
	metrics.ObserveQuery(string(plan.Task), start, outcome)
	logger.Info("query answered", "task", plan.Task, "results", len(results), "partial", resp.IsPartial(), "elapsed", resp.Elapsed)
	return resp, nil
}

// resolveTask takes the caller's override when the registry knows it, otherwise
// classifies the query. Every fallback to general is counted.
func (o *Orchestrator) resolveTask(ctx context.Context, req Request, logger *slog.Logger) core.TaskType {
	if req.TaskType != "" {
		if o.registry.Has(req.TaskType) {
			return req.TaskType
		}
		if task, err := core.ParseTaskType(string(req.TaskType)); err == nil && o.registry.Has(task) {
			return task
		}
		logger.Warn("unknown task type override, using general retrieval", "task", req.TaskType)
		metrics.IncClassifierFallback()
		return core.TaskGeneral
	}

	task, err := o.classifier.ClassifyWithReason(ctx, req.Text)
	if err != nil {
		metrics.IncClassifierFallback()
	}
	if !o.registry.Has(task) {
		return core.TaskGeneral
	}
	return task
}

// runAlgorithm runs one executor and the plan's enhancements on its output.
// A failed enhancement leaves the output as it was and marks it partial.
func (o *Orchestrator) runAlgorithm(ctx context.Context, name string, enhancements []string,
	req *retrieval.Request, tr *trace, logger *slog.Logger) (*retrieval.Output, error) {
	start := time.Now()
	exec, ok := o.executors[name]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
		tr.add(StageAlgorithm, name, 0, 1, err)
		return nil, err
	}

	out, err := exec.Retrieve(ctx, req)
	if err != nil {
		tr.add(StageAlgorithm, name, 0, 1, err)
		return nil, err
	}
	tr.add(StageAlgorithm, name, len(out.Candidates), out.Failed, out.Err)
	metrics.ObserveAlgorithm(name, start, len(out.Candidates))

	for _, en := range enhancements {
		enhancer, ok := o.enhancers[en]
		if !ok {
			err := fmt.Errorf("%w: enhancement %q", ErrUnknownAlgorithm, en)
			tr.add(StageEnhancement, en, len(out.Candidates), 1, err)
			return nil, err
		}
		failed := out.Failed
		if err := enhancer.Enhance(ctx, req, out); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("enhancement failed", "algorithm", name, "enhancement", en, "err", err)
			out.Failed++
			tr.add(StageEnhancement, en, len(out.Candidates), 1, err)
			continue
		}
		out.Enhancements = append(out.Enhancements, en)
		tr.add(StageEnhancement, en, len(out.Candidates), out.Failed-failed, nil)
	}
	return out, nil
}

// resolve turns ranked candidates into results, loading documents through the
// tenant. Anything the tenant does not own is dropped.
func (o *Orchestrator) resolve(ctx context.Context, id core.TenantID, ranked []*retrieval.Ranked, logger *slog.Logger) ([]*Result, error) {
	results := make([]*Result, 0, len(ranked))
	for _, r := range ranked {
		result := &Result{
			Stub:       r.Stub,
			Record:     r.Record,
			Sections:   r.Sections,
			Score:      r.Score,
			Similarity: r.Similarity,
			RankSum:    r.RankSum,
			Ranks:      r.Ranks,
			Hops:       r.Hops,
			Demoted:    r.Demoted,
			Provenance: r.Provenance,
		}

		if r.DocumentID == 0 {
			if r.Stub == nil || !tenant.Owns(id, r.Stub.Tenant) {
				continue
			}
			results = append(results, result)
			continue
		}

		doc := r.Document
		if doc == nil {
			var err error
			doc, err = o.store.GetDocument(ctx, id, r.DocumentID)
			if errors.Is(err, storage.ErrNotFound) {
				logger.Debug("result document disappeared", "document", r.DocumentID)
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		if !tenant.Owns(id, doc.Tenant) || (r.Record != nil && !tenant.Owns(id, r.Record.Tenant)) {
			logger.Error("dropping result outside the query tenant", "document", doc.Id, "owner", doc.Tenant)
			continue
		}
		result.Document = doc
		results = append(results, result)
	}
	return results, nil
}

func (o *Orchestrator) limit(requested int) int {
	switch {
	case requested <= 0:
		return o.options.DefaultLimit
	case requested > o.options.MaxLimit:
		return o.options.MaxLimit
	}
	return requested
}
