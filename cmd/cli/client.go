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
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"kb-support/internal/pipeline/common"
	"kb-support/internal/storage/runlog"
)

// askTimeout 覆盖 LLM 两次尝试与工具调用
const askTimeout = 120 * time.Second

func newClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(askTimeout).
		SetHeader("Content-Type", "application/json")
}

func postChat(baseURL, threadID, message string) (*common.StructuredResponse, error) {
	var out common.StructuredResponse
	resp, err := newClient(baseURL).R().
		SetBody(map[string]string{"message": message, "thread_id": threadID}).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/chat")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /chat: %s", resp.String())
	}
	return &out, nil
}

func getHistory(baseURL, threadID string, limit int) ([]runlog.Entry, error) {
	var out struct {
		History []runlog.Entry `json:"history"`
	}
	q := url.Values{}
	if threadID != "" {
		q.Set("thread_id", threadID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	resp, err := newClient(baseURL).R().
		SetQueryParamsFromValues(q).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/history")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /history: %s", resp.String())
	}
	return out.History, nil
}

func getThreads(baseURL string) ([]runlog.ThreadSummary, error) {
	var out struct {
		Threads []runlog.ThreadSummary `json:"threads"`
	}
	resp, err := newClient(baseURL).R().
		SetResult(&out).
		ForceContentType("application/json").
		Get("/threads")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /threads: %s", resp.String())
	}
	return out.Threads, nil
}
