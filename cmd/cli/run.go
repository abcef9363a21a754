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

package main

import (
	"context"
	"fmt"

	"kb-support/internal/app"
	"kb-support/internal/pipeline/common"
	"kb-support/internal/storage/runlog"
	"kb-support/pkg/tracing"
)

const defaultServer = "http://localhost:8080"

func loadHistory(ctx context.Context, opts *options) ([]runlog.Entry, error) {
	if opts.server != "" {
		return getHistory(opts.server, opts.thread, opts.limit)
	}
	store, err := openRunLog(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.History(ctx, opts.thread, opts.limit)
}

func loadThreads(ctx context.Context, opts *options) ([]runlog.ThreadSummary, error) {
	if opts.server != "" {
		return getThreads(opts.server)
	}
	store, err := openRunLog(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Threads(ctx)
}

func openRunLog(ctx context.Context, path string) (runlog.Store, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	return runlog.NewStore(ctx, cfg.Storage.RunLog)
}

// ask 默认发往 API；--local 时在本进程内装配 Agent
func ask(ctx context.Context, opts *options, message string) (*common.StructuredResponse, error) {
	if !opts.local {
		server := opts.server
		if server == "" {
			server = defaultServer
		}
		return postChat(server, opts.thread, message)
	}
	return askLocal(ctx, opts, message)
}

func askLocal(ctx context.Context, opts *options, message string) (*common.StructuredResponse, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if t := cfg.Monitoring.Tracing; t.Enable && t.ExportEndpoint != "" {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    t.ServiceName,
			ExportEndpoint: t.ExportEndpoint,
			Insecure:       t.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化链路追踪失败: %w", err)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	client, ms, err := app.NewLLMClientFromConfig(ctx, cfg, b.Secrets)
	if err != nil {
		return nil, err
	}
	res, err := app.NewSupportAgent(b, client, ms).Chat(ctx, opts.thread, message)
	if err != nil {
		return nil, err
	}
	return &res.Response, nil
}
