// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理。

# 概述

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误传播。
API 服务与指标服务各使用一个 Manager，由 errgroup 通过 Run 并行运行，
信号处理在进程入口通过 signal.NotifyContext 完成。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 阻塞运行：Run 在 ctx 取消或服务出错时完成优雅关闭后返回。
  - TLS：Config.TLS 非空时以 TLS 监听器提供服务。
  - 状态查询：Addr 在启动后返回实际监听地址（支持 ":0"）。
*/
package server
