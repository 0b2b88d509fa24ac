package main

import (
	"context"
	"time"

	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/router"
	"resume-agent-go/internal/ats"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	// .env仅开发环境存在，找不到不算错误
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(cfg.Logger)
	hlog.SetLogger(hertzzerolog.From(logger.Logger))
	logger.Info().Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracerProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化链路追踪失败")
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("关闭链路追踪失败")
			}
		}()
		logger.Info().Str("endpoint", cfg.Tracing.OTLPEndpoint).Msg("链路追踪已启用")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	logger.Info().Msg("存储服务初始化成功")

	extractor, err := parser.NewTextExtractor(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文本提取器失败")
	}

	parseTimeout := time.Duration(cfg.Gateway.ParseTimeoutSeconds) * time.Second
	invoker := llm.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, parseTimeout)

	var cache processor.DedupCache
	if storageManager.Redis != nil {
		cache = storageManager.Redis
	}
	var objects processor.ObjectStore
	if storageManager.MinIO != nil {
		objects = storageManager.MinIO
	}
	var publisher processor.EventPublisher
	if storageManager.RabbitMQ != nil {
		publisher = storageManager.RabbitMQ
	}

	resumeService := processor.NewResumeService(invoker, &cfg.Gateway, extractor,
		storageManager.MySQL, cache, objects, publisher)
	searchService := processor.NewSearchService(invoker, &cfg.Gateway, storageManager.MySQL)
	logger.Info().Msg("解析与搜索服务初始化成功")

	// ATS同步消费者：平台启用且消息队列可用时才启动
	if cfg.ATS.Enabled && storageManager.RabbitMQ != nil {
		atsClient := ats.NewClient(&cfg.ATS)
		worker := ats.NewWorker(atsClient, storageManager.MySQL, storageManager.RabbitMQ,
			cfg.RabbitMQ.ATSSyncQueue, cfg.RabbitMQ.PrefetchCount)
		stopWorker, err := worker.Start()
		if err != nil {
			logger.Fatal().Err(err).Msg("启动ATS同步消费者失败")
		}
		defer close(stopWorker)
		logger.Info().Str("queue", cfg.RabbitMQ.ATSSyncQueue).Msg("ATS同步消费者已启动")
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, cfg, handler.NewResumeHandler(resumeService, searchService))

	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务启动")
	h.Spin()
}
