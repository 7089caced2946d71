// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/myco-sh/myco/executor/executormock"
	"github.com/myco-sh/myco/internal/store"
)

func TestMockExecutorDeployInvoked(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	m := executormock.NewMockExecutor(ctrl)

	rec := store.NewRecord(42, "hello", "github:example/hello", "run")
	m.EXPECT().Deploy(gomock.Any(), rec).Return(nil).Times(1)

	require.NoError(m.Deploy(context.Background(), rec))
}

func TestMockExecutorDeployError(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	m := executormock.NewMockExecutor(ctrl)

	wantErr := errors.New("deploy failed")
	m.EXPECT().Deploy(gomock.Any(), gomock.Any()).Return(wantErr)

	err := m.Deploy(context.Background(), store.Record{})
	require.ErrorIs(err, wantErr)
}
