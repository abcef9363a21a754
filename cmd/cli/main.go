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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kb-support/pkg/config"
)

const version = "0.1.0"

// options 全局参数
type options struct {
	configPath string
	server     string
	thread     string
	limit      int
	local      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "kbs",
		Short:         "知识库客服助手命令行：提问、查看运行日志与会话",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath(), "配置文件路径")
	root.PersistentFlags().StringVar(&opts.server, "server", "", "API 服务地址；为空时直接读取本地运行日志")

	root.AddCommand(
		newVersionCmd(),
		newHistoryCmd(opts),
		newThreadsCmd(opts),
		newAskCmd(opts),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kbs "+version)
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "按会话列出运行日志（最新在前）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := loadHistory(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&opts.thread, "thread", "", "会话 ID，为空时列出全部")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "最多返回条数")
	return cmd
}

func newThreadsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "列出会话及记录数",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			threads, err := loadThreads(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printThreads(cmd.OutOrStdout(), threads)
			return nil
		},
	}
}

func newAskCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask MESSAGE",
		Short: "提问并打印结构化回答",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ask(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&opts.thread, "thread", "", "会话 ID，为空时使用默认会话")
	cmd.Flags().BoolVar(&opts.local, "local", false, "不经过 API，在本进程内运行对话流程")
	return cmd
}

func defaultConfigPath() string {
	if p := os.Getenv("KBSUPPORT_CONFIG"); p != "" {
		return p
	}
	return "configs/api.yaml"
}

func loadConfig(path string) (*config.Config, error) {
	return config.LoadConfig(path)
}
