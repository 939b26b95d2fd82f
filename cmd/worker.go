package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reelforge/src/core/generation"
	"reelforge/src/core/sceneplan"
	"reelforge/src/infrastructure/integrations/ollama"
	"reelforge/src/infrastructure/integrations/renderer"
	"reelforge/src/infrastructure/integrations/speech"
	jobsvc "reelforge/src/infrastructure/job"
	"reelforge/src/jobctrl"
	"reelforge/src/storage/minioctrl"
	"reelforge/src/storage/postgres/genjobctrl"
	"reelforge/src/storage/postgres/mediactrl"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the generation pipeline worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	settingDefaultConfig()
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Initialize logger
	logger := watermill.NewStdLogger(false, false)

	// Initialize PostgreSQL connection
	host := viper.GetString("postgres.host")
	user := viper.GetString("postgres.user")
	password := viper.GetString("postgres.password")
	dbname := viper.GetString("postgres.db")
	port := viper.GetString("postgres.port")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Get underlying *sql.DB for cleanup
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	defer sqlDB.Close()

	// Initialize AMQP subscriber
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(
		subscriberConfig,
		logger,
	)
	if err != nil {
		return err
	}
	defer amqpSubscriber.Close()

	// Initialize router. Retries cover infrastructure errors only: a failed
	// pipeline step is recorded in the job and acked, never redelivered.
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return err
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: time.Second,
			Logger:          logger,
		}.Middleware,
	)

	// Initialize MinioService and make sure the pipeline buckets exist
	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize minio service: %v", err)
	}
	workBucket := viper.GetString("minio.work_bucket")
	outputBucket := viper.GetString("minio.output_bucket")
	for _, bucket := range []string{workBucket, outputBucket} {
		if err := minioService.EnsureBucketExists(context.Background(), bucket); err != nil {
			return fmt.Errorf("failed to ensure bucket %s exists: %v", bucket, err)
		}
	}

	// Initialize storage services
	genJobService, err := genjobctrl.NewGenJobService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize generation job service: %v", err)
	}
	mediaService, err := mediactrl.NewMediaService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize media service: %v", err)
	}

	// Initialize external service clients
	speechClient := speech.NewClient(viper.GetString("speech.url"), &http.Client{})
	ollamaClient := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{})
	rendererClient := renderer.NewClient(viper.GetString("renderer.url"), &http.Client{})

	// Initialize the scene planning flow
	planFlow := sceneplan.NewFlow(ollama.NewProvider(ollamaClient, viper.GetString("ollama.model")))

	// Initialize executors and orchestrator
	executors := jobctrl.NewExecutors(
		mediaService,
		minioService,
		speechClient,
		planFlow,
		rendererClient,
		workBucket,
		outputBucket,
		viper.GetString("minio.domain"),
	)
	orchestrator, err := generation.NewOrchestrator(genJobService, executors)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %v", err)
	}

	// Initialize job service
	jobService := jobsvc.NewService(nil, genJobService, orchestrator, logger)

	// Add handler for processing generation jobs
	router.AddNoPublisherHandler(
		"generation_processor",
		jobsvc.TopicGenerations,
		amqpSubscriber,
		func(msg *message.Message) error {
			return jobService.ProcessMessage(msg)
		},
	)

	// Run the router
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := router.Run(ctx)
		if err != nil {
			log.Fatal(err)
		}
	}()

	// Sweep for steps stuck in processing (worker died mid-step)
	stepTimeout := viper.GetDuration("pipeline.step_timeout")
	watchdogInterval := viper.GetDuration("pipeline.watchdog_interval")
	go func() {
		ticker := time.NewTicker(watchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				failed, err := genJobService.FailStuckSteps(ctx, stepTimeout)
				if err != nil {
					logger.Error("Watchdog sweep failed", err, nil)
					continue
				}
				if failed > 0 {
					logger.Info("Watchdog failed stuck jobs", watermill.LogFields{
						"count": failed,
					})
				}
			}
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Println("Shutting down...")
	cancel()
	<-router.Running()
	log.Println("Router stopped")

	return nil
}
