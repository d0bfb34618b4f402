package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/config"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/email"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-interpolation-service/internal/infra/minio"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-interpolation-service/internal/infra/tracing"
	"github.com/fiapx/fiapx-interpolation-service/internal/interpolation"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/average"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/convnet"
	"github.com/fiapx/fiapx-interpolation-service/internal/usecase"
	"github.com/fiapx/fiapx-interpolation-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting fiapx-interpolation-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, tracing.Config{
		Endpoint:    cfg.JaegerEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
		Attributes: []attribute.KeyValue{
			attribute.String("interpolation.default_strategy", cfg.DefaultStrategy),
			attribute.Int("interpolation.max_passes", cfg.MaxPasses),
		},
	})
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		OutputBucket: cfg.MinIOOutputBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// A missing model only disables the deep strategy.
	deep := convnet.New(convnet.Config{
		WeightsPath:       cfg.ModelWeightsPath,
		WorkingResolution: entity.Resolution{Width: cfg.ModelWorkingWidth, Height: cfg.ModelWorkingHeight},
	})
	if err := deep.Load(); err != nil {
		log.Warn("deep strategy unavailable", zap.String("weights", cfg.ModelWeightsPath), zap.Error(err))
	} else {
		log.Info("deep strategy loaded", zap.String("weights", cfg.ModelWeightsPath))
	}
	strategies := interpolation.Strategies{
		entity.StrategyNaive: average.New(),
		entity.StrategyDeep:  deep,
	}

	defaultStrategy, err := entity.ParseStrategyKind(cfg.DefaultStrategy)
	fatalOnErr(err, "parse INTERPOLATION_DEFAULT_STRATEGY")
	audioPolicy, err := entity.ParseAudioPolicy(cfg.AudioPolicy)
	fatalOnErr(err, "parse INTERPOLATION_AUDIO_POLICY")

	repo := postgres.NewJobRepository(pool)
	decoder := ffmpeg.NewDecoder(ffmpeg.DecoderConfig{
		FFmpegBin:  cfg.FFmpegBin,
		FFprobeBin: cfg.FFprobeBin,
		MaxFrames:  cfg.MaxFrames,
	}, log)
	assembler := ffmpeg.NewAssembler(ffmpeg.AssemblerConfig{
		FFmpegBin:  cfg.FFmpegBin,
		VideoCodec: cfg.FFmpegVideoCodec,
		AudioCodec: cfg.FFmpegAudioCodec,
		CRF:        cfg.FFmpegCRF,
	}, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	uc := usecase.NewInterpolateVideoUseCase(
		repo, storage, decoder, assembler, strategies,
		statusPub, dlqPub, notifier,
		log,
		usecase.InterpolateVideoConfig{
			TempDir:         cfg.TempDir,
			MaxRetries:      cfg.MaxRetries,
			DefaultPasses:   cfg.DefaultPasses,
			MaxPasses:       cfg.MaxPasses,
			DefaultStrategy: defaultStrategy,
			AllowFallback:   cfg.AllowFallback,
			AudioPolicy:     audioPolicy,
			PairWorkers:     cfg.PairWorkers,
		},
	)

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log, map[string]metrics.Check{
		"postgres": func() error { return pool.Ping(ctx) },
		"naive":    strategies[entity.StrategyNaive].Ready,
		"deep":     deep.Ready,
	})

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQInterpolationQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("fiapx-interpolation-service started, consuming messages",
		zap.String("queue", cfg.RabbitMQInterpolationQueue),
		zap.String("default_strategy", string(defaultStrategy)),
		zap.Int("max_passes", cfg.MaxPasses),
	)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("fiapx-interpolation-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
