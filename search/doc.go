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


// Package search is the public query entry point of the retrieval engine.
//
// An Orchestrator answers one query in these steps:
//   - reject the query when it carries no tenant, before any other call
//   - classify the query into a task type, or take the caller's override
//   - resolve the task type to a plan in the strategy registry
//   - run each planned algorithm and apply the plan's enhancements to its list
//   - merge the lists by rank sum and resolve documents through the tenant
//
// Failed sub-queries do not fail the query. They are reported on the response
// as a PartialFailure; only a query whose every algorithm failed returns
// core.ErrAllFanoutFailed.
package search
