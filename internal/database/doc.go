// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接与连接池管理。

# 概述

Open 按配置选择 postgres、mysql 或纯 Go sqlite 驱动并创建 PoolManager。
PoolManager 统一管理连接池参数，后台健康检查定时探活并上报连接数。

# 主要能力

  - 连接池调优：MaxIdleConns/MaxOpenConns/ConnMaxLifetime，PoolConfig.Validate 校验
  - 健康检查：Close 后停止，连接数通过 StatsRecorder 上报
  - 事务管理：WithTransaction 与 WithTransactionRetry（死锁、序列化失败、
    sqlite 锁等场景按指数退避重试）
*/
package database
