// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 conversation 管理单个参与者的多轮对话。

# 概述

History 是只追加的轮次序列：Append 返回新实例，AsContext 按追加顺序
返回副本，既不去重也不截断。历史长度不设上限。

Session 以完整历史作为上下文调用生成服务。用户轮次在调用前追加，
模型轮次只在调用成功后追加；Ask 与 SendMedia 为一次性请求，不写入历史。

# 持久化

  - MemoryStore：进程内存储
  - RedisStore：每个会话一个 Redis 列表（RPUSH / LRANGE）

TokenCounter 基于 tiktoken 估算历史 token 数，仅用于日志，不会触发裁剪。
*/
package conversation
