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


// Package tenant enforces per-tenant scoping of storage queries.
//
// Every retrieval primitive call is built through Filter, so the tenant predicate
// is part of the query the store executes. There is no default tenant and no way
// to build an unscoped query through this package.
package tenant

import (
	"fmt"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// Require returns core.ErrMissingTenant when id is absent or blank.
func Require(id core.TenantID) error {
	if id.IsZero() {
		return core.ErrMissingTenant
	}
	return nil
}

// Filter returns q scoped to id. A query already scoped to a different tenant is
// rejected rather than rescoped.
func Filter(id core.TenantID, q storage.Query) (storage.Query, error) {
	if err := Require(id); err != nil {
		return storage.Query{}, err
	}
	if q.Tenant != "" && q.Tenant != id {
		return storage.Query{}, fmt.Errorf("%w: query scoped to %q cannot be rescoped to %q",
			storage.ErrInvalidQuery, q.Tenant, id)
	}
	q.Tenant = id
	return q, nil
}

// Owns reports whether entity tenant matches id. It is an invariant check on
// results already produced by scoped queries, not a filter.
func Owns(id, entity core.TenantID) bool {
	return !id.IsZero() && id == entity
}
