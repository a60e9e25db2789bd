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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
)

// Router 筛选 API 路由器
type Router struct {
	handler *Handler
}

// NewRouter 创建路由器
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Build 构建 Hertz Server 并注册全部路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	options := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(options...)

	h.GET("/health", r.handler.HealthCheck)
	h.GET("/api/health", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)

	screenings := h.Group("/api/screenings")
	{
		screenings.POST("", r.handler.CreateScreening)
		screenings.GET("/:id", r.handler.GetScreening)
		screenings.GET("/:id/verdict", r.handler.GetVerdict)
		screenings.POST("/:id/cancel", r.handler.CancelScreening)
	}

	return h
}
