// Package prompt 构建发送给生成模型的属性提示词与图像提示词，均为确定性纯函数。
package prompt
