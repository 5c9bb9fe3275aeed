package main

import (
	"context"
	cryptorand "crypto/rand"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"campus_parking/internal/api"
	"campus_parking/internal/api/handler"
	"campus_parking/internal/api/middleware"
	"campus_parking/internal/config"
	"campus_parking/internal/estimator"
	"campus_parking/internal/framesource"
	"campus_parking/internal/iot"
	"campus_parking/internal/ledger"
	"campus_parking/internal/logging"
	"campus_parking/internal/repository/memory"
	"campus_parking/internal/service"
	"campus_parking/internal/telemetry"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

func main() {
	ctx := context.Background()
	fatal := func(format string, args ...interface{}) {
		logging.Errorf(ctx, format, args...)
		os.Exit(1)
	}

	// 1. Configuration and lot catalogue
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration: %v", err)
	}
	lots, err := config.LoadLots(cfg.LotsFile, cfg.FrameRoot)
	if err != nil {
		fatal("could not load lot catalogue: %v", err)
	}
	logging.Infof(ctx, "configuration loaded, %d lot(s)", len(lots))

	// 2. Telemetry
	if cfg.OTLPEndpoint != "" {
		provider, err := telemetry.NewProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			fatal("could not start telemetry: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logging.Warnf(ctx, "telemetry shutdown: %v", err)
			}
		}()
	}

	// 3. AWS clients, only for the features that are configured
	var awsSDKCfg aws.Config
	needAWS := cfg.EstimatorBackend == estimator.BackendRekognition || cfg.SQSEventQueueURL != "" || cfg.IoTMQTTEndpoint != ""
	if needAWS {
		awsSDKCfg, err = awsgo_config.LoadDefaultConfig(ctx, awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			fatal("could not load AWS SDK config: %v", err)
		}
		logging.Infof(ctx, "AWS SDK config loaded for region %s", cfg.AWSRegion)
	}

	// 4. Ledger, seeded with a plausible starting occupancy
	occupancyLedger, err := ledger.New(lots)
	if err != nil {
		fatal("could not build ledger: %v", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	occupancyLedger.Seed(rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1)))

	// 5. Classifier
	opts := estimator.Options{
		Rule:        estimator.RuleConfig{VacantBelow: cfg.RuleVacantBelow},
		Rekognition: estimator.RekognitionConfig{MinConfidence: cfg.RekognitionMinConfidence},
	}
	if cfg.EstimatorBackend == estimator.BackendRekognition {
		opts.Detector = rekognition.NewFromConfig(awsSDKCfg)
	}
	classifier, err := estimator.New(cfg.EstimatorBackend, opts)
	if err != nil {
		fatal("could not build classifier: %v", err)
	}
	logging.Infof(ctx, "estimator backend: %s", classifier.Name())

	// 6. Services
	occupancyService := service.NewOccupancyService(
		occupancyLedger,
		estimator.Instrument(classifier),
		framesource.NewDirectorySource(lots),
		memory.NewReservationRepository(),
		service.NewMapProvider(cfg.GoogleMapsAPIKey, cfg.CampusCenter),
		service.OccupancyOptions{
			Timeout:    cfg.EstimatorTimeout,
			RatePerSec: cfg.EstimatorRatePerSec,
			Workers:    cfg.PollWorkers,
		},
	)
	iotService := service.NewIoTService(occupancyService, memory.NewDeviceEventsLogRepository(memory.DefaultEventLogSize))

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		jwtSecret = make([]byte, 32)
		if _, err := cryptorand.Read(jwtSecret); err != nil {
			fatal("could not generate token signing key: %v", err)
		}
		logging.Warnf(ctx, "JWT_SECRET not set, tokens will not survive a restart")
	}
	authService, err := service.NewAuthService(cfg.AdminSecret, jwtSecret, cfg.AdminTokenTTL)
	if err != nil {
		fatal("could not initialise auth: %v", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)

	// 7. Background workers
	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)

	webSocketManager := handler.NewWebSocketManager()
	occupancyService.SetWebSocketManager(webSocketManager)
	wg.Add(1)
	go func() {
		defer wg.Done()
		webSocketManager.Start(workerCtx)
	}()

	if cfg.IoTMQTTEndpoint == "" {
		logging.Warnf(ctx, "IOT_MQTT_ENDPOINT not set, signboard publishing disabled")
	} else {
		iotDataPlaneClient := iotdataplane.NewFromConfig(awsSDKCfg, func(o *iotdataplane.Options) {
			endpointWithSchema := cfg.IoTMQTTEndpoint
			if !strings.HasPrefix(endpointWithSchema, "https://") && !strings.HasPrefix(endpointWithSchema, "http://") {
				endpointWithSchema = "https://" + endpointWithSchema
			}
			o.BaseEndpoint = aws.String(endpointWithSchema)
		})
		signboard := service.NewSignboardService(iotDataPlaneClient, cfg.IoTTopicPrefix)
		occupancyService.SetSignboard(signboard)
		wg.Add(1)
		go func() {
			defer wg.Done()
			signboard.Run(workerCtx)
		}()
	}

	if cfg.SQSEventQueueURL == "" {
		logging.Warnf(ctx, "SQS_EVENT_QUEUE_URL not set, sensor consumer will not run")
	} else {
		sqsConsumer := iot.NewSQSConsumer(sqs.NewFromConfig(awsSDKCfg), cfg.SQSEventQueueURL, iotService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sqsConsumer.Start(workerCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		occupancyService.RunPoller(workerCtx, cfg.PollInterval)
	}()

	// 8. HTTP server
	router := api.SetupRouter(cfg.ServiceName, authService, occupancyService, iotService, authMiddleware, webSocketManager)
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Infof(ctx, "server listening on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("ListenAndServe: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Infof(ctx, "shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Errorf(ctx, "forced shutdown: %v", err)
	}

	cancelWorkers()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
		logging.Infof(ctx, "background workers stopped")
	case <-time.After(5 * time.Second):
		logging.Warnf(ctx, "background workers did not stop in time")
	}

	logging.Infof(ctx, "server stopped")
}
