// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartJobSpan 开始筛选 Job 的执行 span
func StartJobSpan(ctx context.Context, jobID string, candidateRef string) (context.Context, trace.Span) {
	tracer := otel.Tracer("screening-platform")
	ctx, span := tracer.Start(ctx, "screening.job",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("job.candidate_ref", candidateRef),
		),
	)
	return ctx, span
}

// StartNodeSpan 开始 PEC 节点执行 span
func StartNodeSpan(ctx context.Context, jobID string, node string) (context.Context, trace.Span) {
	tracer := otel.Tracer("screening-platform")
	ctx, span := tracer.Start(ctx, "screening.node",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("node.name", node),
		),
	)
	return ctx, span
}

// StartHopSpan 开始检索引擎单跳 span（broad_search / agentic_filter / gap_analysis）
func StartHopSpan(ctx context.Context, jobID string, hop string) (context.Context, trace.Span) {
	tracer := otel.Tracer("screening-platform")
	ctx, span := tracer.Start(ctx, "retrieval."+hop,
		trace.WithAttributes(
			attribute.String("job.id", jobID),
		),
	)
	return ctx, span
}
