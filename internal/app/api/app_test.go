// Copyright 2026 fanjia1024
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

package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-support/internal/app"
	"kb-support/pkg/config"
)

func TestNewApp_WithoutLLM(t *testing.T) {
	ctx := context.Background()
	b, err := app.NewBootstrap(ctx, &config.Config{
		API: config.APIConfig{Timeout: "15s"},
		Storage: config.StorageConfig{
			RunLog: config.RunLogConfig{Type: "memory"},
			Cache:  config.CacheConfig{Type: "none"},
		},
	})
	require.NoError(t, err)
	defer b.Close()

	a, err := NewApp(ctx, b)
	require.NoError(t, err)
	require.NotNil(t, a.router)
	assert.Len(t, a.serverOptions(), 2)
	assert.NoError(t, a.Shutdown(ctx))
}

func TestNewApp_NilBootstrap(t *testing.T) {
	_, err := NewApp(context.Background(), nil)
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseDuration("3s", 0))
	assert.Equal(t, time.Minute, parseDuration("x", time.Minute))
}
