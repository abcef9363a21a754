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

package model

import (
	"fmt"
	"sort"
	"sync"

	"kb-support/internal/model/llm"
)

// Registry 按名称（provider.model_key）登记已创建的 LLM 客户端，便于运行时切换
var (
	llmRegistry = make(map[string]llm.Client)
	registryMu  sync.RWMutex
)

// RegisterLLM 注册 LLM 实现
func RegisterLLM(name string, c llm.Client) {
	registryMu.Lock()
	defer registryMu.Unlock()
	llmRegistry[name] = c
}

// GetLLM 按名称获取 LLM
func GetLLM(name string) (llm.Client, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := llmRegistry[name]
	if !ok {
		return nil, fmt.Errorf("LLM not registered: %s", name)
	}
	return c, nil
}

// ListLLM 返回已注册的名称，按字典序
func ListLLM() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(llmRegistry))
	for n := range llmRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
