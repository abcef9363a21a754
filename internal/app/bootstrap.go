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
	"context"
	"fmt"

	"kb-support/internal/kb"
	"kb-support/internal/storage/cache"
	"kb-support/internal/storage/runlog"
	"kb-support/pkg/config"
	"kb-support/pkg/log"
	"kb-support/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内写业务装配
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	KB      *kb.Store
	RunLog  runlog.Store
	Cache   cache.Store // type=none 时为 nil
	Secrets secrets.Store
}

// NewBootstrap 根据配置创建 Bootstrap（日志、知识库、运行日志、缓存、密钥）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	b := &Bootstrap{Config: cfg, Logger: logger}
	if err := b.init(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bootstrap) init(ctx context.Context) error {
	cfg := b.Config
	var err error

	if cfg.Support.KBPath != "" {
		b.KB, err = kb.Load(cfg.Support.KBPath)
	} else {
		b.KB, err = kb.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("加载知识库failed: %w", err)
	}
	b.Logger.Info("知识库已加载", "articles", b.KB.Len(), "fingerprint", b.KB.Fingerprint())

	b.Secrets, err = secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
	})
	if err != nil {
		return fmt.Errorf("初始化密钥存储failed: %w", err)
	}

	b.RunLog, err = runlog.NewStore(ctx, cfg.Storage.RunLog)
	if err != nil {
		return fmt.Errorf("初始化运行日志failed: %w", err)
	}

	b.Cache, err = cache.NewCache(ctx, cfg.Storage.Cache)
	if err != nil {
		return fmt.Errorf("初始化缓存failed: %w", err)
	}
	return nil
}

// Close 释放存储与日志文件
func (b *Bootstrap) Close() error {
	if b.Cache != nil {
		_ = b.Cache.Close()
	}
	if b.RunLog != nil {
		_ = b.RunLog.Close()
	}
	if b.Logger != nil {
		return b.Logger.Close()
	}
	return nil
}
