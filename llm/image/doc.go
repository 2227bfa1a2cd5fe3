// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 负责生成图像的解码与持久化。

# 概述

Decode 将模型返回的 base64 内联数据解码为 image.Image（支持 PNG 与 JPEG），
失败时返回 DECODE_FAILURE。Materializer.Persist 以 PNG 格式写入配置目录，
文件名为 character_{职业名}_{yyyyMMdd_HHmmss}.png。

持久化失败由调用方记录为警告，不影响已解码图像的使用。
*/
package image
