// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 CharForge HTTP API 的请求处理器实现。

# 概述

handlers 包实现角色生成会话、会话内对话、事件流、基础数据、
生成记录与健康检查端点。所有 Handler 均遵循标准 net/http 接口，
通过 Register 挂载到 http.ServeMux（Go 1.22 方法 + 路径模式），
并通过 Swagger 注解生成 API 文档。

# 核心类型

  - SessionRegistry：按 ID 管理会话，每个会话持有独立的编排器与对话
  - SessionHandler：生成、重新生成图像与手动编辑（属性、职业、区间、示例）
  - ChatHandler：多轮对话、一次性提问与附件分析
  - EventsHandler：WebSocket 推送编排器事件
  - CatalogHandler：属性定义、示例语料与基础数据重载
  - RecordsHandler：生成记录分页查询
  - HealthHandler：健康检查（/health, /healthz, /ready）
  - Response：统一 JSON 响应结构（success + data + error + timestamp）

# 错误映射

错误码按固定规则映射到 HTTP 状态码：请求错误 4xx，会话忙 409，
上游响应无法使用 502，缺少 API Key 或基础数据 503。
上游服务返回的 HTTP 状态不透传，只记录在 error.details 中。
*/
package handlers
