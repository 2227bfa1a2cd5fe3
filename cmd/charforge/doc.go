// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 CharForge 服务端程序入口。

# 概述

cmd/charforge 是角色生成服务的可执行入口，提供 HTTP API 服务、
离线批量生成、数据库迁移、健康检查和版本查询等子命令。程序支持 YAML
配置文件加载、结构化日志（zap）、Prometheus 指标采集以及基础数据热重载。

# 核心类型

  - Server：持有客户端、基础数据、会话注册表与可选存储，管理 API 与 Metrics 双端口
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、generate（errgroup 限流并发，JSON Lines 输出）、migrate、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、Metrics、
    RequestLogger、CORS、RateLimiter（基于 IP）、APIKeyAuth、JWTAuth
  - 降级运行：Redis、数据库、基础数据、API Key 缺失时服务仍可启动，健康检查报告 degraded
  - 基础数据热重载：FileWatcher 监听文件变更，解析失败保留旧数据
  - 优雅关闭：信号取消 ctx → 关闭 HTTP 与 Metrics → 释放会话、Redis、数据库与遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
