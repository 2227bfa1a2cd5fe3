// Package config 提供 CharForge 的配置管理。
//
// 配置按 默认值 → YAML 文件 → CHARFORGE_ 前缀环境变量 的顺序加载，
// 凭证文件与基础数据文件监听也在这里。
package config
