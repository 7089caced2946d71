// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor defines the callback boundary the Node invokes on
// every accepted service record (spec.md §4.6, §6: "on_deploy(ctx,
// record) -> Result<(), _>").
package executor

//go:generate go run go.uber.org/mock/mockgen -destination=executormock/mock.go -package=executormock . Executor

import (
	"context"

	"github.com/myco-sh/myco/internal/store"
)

// Executor is invoked synchronously during Node.Tick or
// Node.InjectService for every accepted (id, version, record). The
// Node never calls Deploy concurrently with itself, but an Executor
// implementation must be safe to call repeatedly for the same id as
// newer versions arrive.
type Executor interface {
	Deploy(ctx context.Context, record store.Record) error
}
