// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 store 持久化每次发布的角色结果（generation_records 表）。

RecordRepository 基于 GORM，支持 internal/database 打开的任意方言；
Track 订阅编排器事件，自动写入生成与手动覆盖的结果并回填图像路径。
表结构由 internal/migration 管理，开发环境可用 AutoMigrate。
*/
package store
