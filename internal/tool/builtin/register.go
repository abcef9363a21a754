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

package builtin

import (
	"kb-support/internal/tool"
	"kb-support/internal/tool/registry"
)

// RegisterBuiltin 注册内置工具（create_ticket）
func RegisterBuiltin(reg *registry.Registry, defaultPriority string) {
	if reg == nil {
		return
	}
	reg.Register(NewTicketTool(defaultPriority))
}

// RegisterBuiltinWithTools 注册额外工具（用于测试或最小装配）
func RegisterBuiltinWithTools(reg *registry.Registry, tools ...tool.Tool) {
	if reg == nil {
		return
	}
	for _, t := range tools {
		reg.Register(t)
	}
}
