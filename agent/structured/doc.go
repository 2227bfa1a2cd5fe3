// Copyright 2026 AgentFlow Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 structured 负责从模型的自由文本输出中截取结构化载荷并解析为领域类型。

模型常在 JSON 前后附加说明文字，ExtractPayload 取第一个 '{' 到最后一个 '}'
之间的子串，对前后说明文字宽容，但不处理字符串字面量中的花括号。

# 主要类型

  - ParseResult[T]：显式的解析结果，Value 与 Errors 二选一
  - ParseError：带字段路径（如 stats.WIS）的解析错误

# 主要函数

  - ExtractPayload：定位载荷，未找到时返回 false
  - ParseGenerationResult：校验必需字段 jobClass / stats / 四项属性
  - DecodeGenerationResult：组合两者，返回 EXTRACTION_FAILURE 或 PARSE_FAILURE
*/
package structured
