// =============================================================================
// CharForge OpenTelemetry 初始化
// =============================================================================
// 遥测禁用时不创建导出器，全局 Provider 保持 noop；生成服务客户端与编排器
// 的 span 通过全局 TracerProvider 导出。
// =============================================================================

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/BaSui01/charforge/config"
)

// Providers 持有 SDK TracerProvider、MeterProvider 及其资源；禁用时均为 nil
type Providers struct {
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
	res *resource.Resource
}

// 资源属性键
const (
	AttrTextModel    = attribute.Key("charforge.text_model")
	AttrImageModel   = attribute.Key("charforge.image_model")
	AttrImageEnabled = attribute.Key("charforge.image_enabled")
)

// ServiceAttributes 从配置提取生成模型与图像开关，附加到遥测资源上
func ServiceAttributes(cfg *config.Config) []attribute.KeyValue {
	if cfg == nil {
		return nil
	}
	return []attribute.KeyValue{
		AttrTextModel.String(cfg.Gemini.TextModel),
		AttrImageModel.String(cfg.Gemini.ImageModel),
		AttrImageEnabled.Bool(cfg.Generation.ImageEnabled),
	}
}

// Enabled 是否创建了真实的 Provider
func (p *Providers) Enabled() bool {
	return p != nil && p.tp != nil
}

// Resource 返回导出时使用的资源；禁用时为 nil
func (p *Providers) Resource() *resource.Resource {
	if p == nil {
		return nil
	}
	return p.res
}

// Init 初始化 OTel SDK。version 为空时从构建信息读取，attrs 追加到服务资源。
func Init(ctx context.Context, cfg config.TelemetryConfig, version string, logger *zap.Logger, attrs ...attribute.KeyValue) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("telemetry disabled, using noop providers")
		return &Providers{}, nil
	}
	if version == "" {
		version = buildVersion()
	}

	base := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(version),
	}
	res, err := resource.New(ctx, resource.WithAttributes(append(base, attrs...)...))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	// 上游已采样的请求保持采样
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.String("version", version),
		zap.Float64("sample_rate", cfg.SampleRate),
	)
	return &Providers{tp: tp, mp: mp, res: res}, nil
}

// Shutdown 刷新并关闭导出器；nil 或 noop Providers 上调用是安全的
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildVersion 从构建信息读取模块版本，不可用时为 "dev"
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
