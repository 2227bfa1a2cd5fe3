// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 generation 编排角色生成序列。

# 概述

Orchestrator 按会话构造，持有当前结果、属性区间与图像开关。一次 Generate
依次执行：构建属性提示词 → 调用文本模型 → 提取 JSON 载荷 → 解析 → 区间
校验 → 发布结果；启用图像时再调用图像模型，解码第一个内联图像并持久化。

# 状态机

	Idle → StatsPending → StatsReady ─┬→ Idle
	                   └→ StatsFailed  └→ ImagePending → ImageReady | ImageFailed → Idle
	Idle → ImagePending（RegenerateImage）

非 Idle 时的 Generate 与 RegenerateImage 返回 GENERATION_BUSY。手动覆盖
（SetAttributes、SetJobClass、SetRange、ApplyExample）是本地操作，不受此限制。

# 事件

观察者通过 Subscribe 同步接收 state_changed、result_published、commentary、
image_ready、warning 与 failed 事件。
*/
package generation
