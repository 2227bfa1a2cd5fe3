// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集。

# 概述

Collector 通过 promauto 注册到默认 Registry，所有指标按 namespace 隔离。
它同时满足 gemini.Recorder 与 generation.Recorder 接口，由客户端与编排器直接调用。

# 指标

  - HTTP：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx
  - 生成服务：按 model/status 的调用次数与耗时
  - 生成序列：按 stage/outcome 的阶段计数与耗时、状态转换计数、活跃会话数
  - 对话：每次请求携带的历史 token 数
  - 数据库：活跃/空闲连接数、查询耗时
*/
package metrics
