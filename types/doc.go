// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 charforge 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 character、agent、llm、
api 等上层模块提供统一的类型契约。

# 核心类型

  - Error / ErrorCode：结构化错误体系，覆盖传输失败、载荷提取失败、
    解析失败、图像解码失败与配置缺失
  - Role：对话角色封闭集合（user / model / system）

# 主要能力

  - Context 传播：WithRequestID / WithUserID / WithSessionID
  - 错误判定：GetErrorCode / IsCode 支持 errors.As 穿透包装链
*/
package types
