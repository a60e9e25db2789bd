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

package llm

import (
	"net/http"

	"screening-platform/pkg/errors"
	"screening-platform/pkg/utils"
)

// classifyStatus 把 Provider HTTP 状态码映射到流水线错误分类：
// 429 限流可冷却重试；5xx/408 视为瞬时故障；其余 4xx 为不可恢复的 Provider 错误。
func classifyStatus(provider string, statusCode int, body string) error {
	body = utils.TruncateForLog(body, 256)
	switch {
	case statusCode == http.StatusTooManyRequests:
		return errors.Wrapf(errors.ErrRateLimited, "%s API 限流 (429): %s", provider, body)
	case statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return errors.Wrapf(errors.ErrTransientInfra, "%s API 返回 %d: %s", provider, statusCode, body)
	default:
		return errors.Wrapf(errors.ErrProviderError, "%s API 返回 %d: %s", provider, statusCode, body)
	}
}

// classifyTransport 网络层/超时错误统一归为瞬时故障
func classifyTransport(provider string, err error) error {
	return errors.Wrapf(errors.ErrTransientInfra, "调用 %s API failed: %v", provider, err)
}
