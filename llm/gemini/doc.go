// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package gemini 提供 Gemini generateContent REST 接口的最小客户端。

# 概述

Client 只负责一次请求：构造 {base}/{model}:generateContent?key=...，
发送 JSON 请求体并解析响应信封。客户端在两次调用之间不保存状态，
也不做任何重试；调用方在使用响应中的候选与片段前应检查长度，
Response 提供的 Parts / FirstText / FirstInlineData 已处理空列表。

# 错误

  - CONFIGURATION_MISSING：未配置 API Key，不发起网络调用
  - TRANSPORT_ERROR：网络失败、上游状态码 >= 400 或响应体不可解析，
    上游原始响应体保存在 types.Error.Body 中

# 可观测性

每次调用产生一个 OpenTelemetry span，并可通过 Recorder 上报耗时与结果。
RequestsPerSecond 启用客户端节流（只等待，不重试）。
*/
package gemini
