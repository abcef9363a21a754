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

package app

import (
	"time"

	"kb-support/internal/agent"
	"kb-support/internal/model/llm"
	"kb-support/internal/pipeline/query"
	"kb-support/internal/storage/cache"
	"kb-support/internal/storage/runlog"
	"kb-support/internal/tool/builtin"
	"kb-support/internal/tool/registry"
)

// defaultCacheTTL 检索缓存默认有效期
const defaultCacheTTL = 10 * time.Minute

// NewSupportAgent 由 Bootstrap 装配对话 Agent：检索（可带缓存）、工具、运行日志
func NewSupportAgent(b *Bootstrap, client llm.Client, ms ModelSettings) *agent.Agent {
	cfg := b.Config
	settings := query.SettingsFromConfig(cfg.Support)

	retriever := query.NewRetriever(b.KB, query.NewNormalizer(query.DefaultDictionary()), settings.SnippetLength)
	searcher := query.NewCachedSearcher(retriever, b.Cache, b.KB.Fingerprint(),
		cache.ParseTTL(cfg.Storage.Cache.TTL, defaultCacheTTL))

	tools := registry.New()
	builtin.RegisterBuiltin(tools, cfg.Support.DefaultPriority)

	return agent.New(client, searcher, tools,
		agent.WithSettings(settings),
		agent.WithMaxIterations(cfg.Support.MaxIterations),
		agent.WithLogger(b.Logger),
		agent.WithRunLog(runlog.NewWriter(b.RunLog, b.Logger, runlog.DefaultWriterConfig())),
		agent.WithSampling(ms.Temperature, ms.MaxTokens),
		agent.WithDefaultThreadID(cfg.Support.DefaultThreadID),
	)
}
