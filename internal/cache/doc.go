// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 封装 go-redis 客户端，为会话数据提供键值与只追加列表两类存储。

# 概述

Manager 负责连接生命周期：初始化时 Ping 检查、后台定时健康检查、
Close 时停止检查循环并释放连接。关闭后的所有操作返回 ErrClosed。

# 主要能力

  - 键值读写：Get/Set 以及 GetJSON/SetJSON，用于保存会话的最新生成结果
  - 只追加列表：Append 在事务管道中执行 RPUSH 并刷新过期时间，
    Range 按插入顺序读回全部元素，用于持久化对话历史
  - 错误语义：ErrCacheMiss 与 IsCacheMiss
*/
package cache
