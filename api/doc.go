// Package api 定义 charforge HTTP API 的请求与响应类型。
//
// # API 概览
//
//   - 生成会话：创建、查询、生成属性与图像、手动覆盖、区间调整
//   - 对话：带系统指令的多轮对话与一次性提问
//   - 事件：通过 WebSocket 推送编排器事件
//   - 基础数据：示例列表与重载
//   - 记录：已发布结果的分页查询
//
// # 认证
//
// 配置了 API Key 时，除健康检查外的端点都需要 X-API-Key 请求头：
//
//	X-API-Key: your-api-key
//
// 配置了 JWT 密钥时，同样接受 Authorization: Bearer <token>。
package api
