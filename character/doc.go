// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package character 定义角色生成的领域模型：四项属性、属性区间、
属性定义表、few-shot 示例语料以及生成结果。

# 概述

character 不依赖网络与存储，所有函数均为纯函数或基于快照的只读访问。
属性校验（Clamp）对每个字段独立生效，幂等且单调；区间越界不视为错误，
而是被透明修正。

# 基础数据

基础数据（statBase 与 characterExamples）可从 JSON 或 YAML 文件加载。
Catalog 以 atomic.Pointer 持有当前快照，Reload 整体替换引用，
并发读者不会观察到半更新的定义表。
*/
package character
