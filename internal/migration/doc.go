// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理生成记录表（generation_records）的 Schema 版本，
支持 PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌在二进制中，文件名形如
000001_create_generation_records.up.sql。DefaultMigrator 封装
golang-migrate 实例，CLI 提供 charforge migrate 子命令的终端输出。

# 核心类型

  - Migrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info/Close
  - DefaultMigrator：默认实现，日志接入 zap
  - CLI：子命令分发（Run）与格式化输出
  - NewMigratorFromConfig / NewMigratorFromDatabaseConfig / NewMigratorFromURL：
    从应用配置或连接串创建迁移器
*/
package migration
