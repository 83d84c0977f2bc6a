package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"

	"github.com/chiranSam/job-application-form/internal/api"
	"github.com/chiranSam/job-application-form/internal/config"
	"github.com/chiranSam/job-application-form/internal/extraction"
	"github.com/chiranSam/job-application-form/internal/intake"
	"github.com/chiranSam/job-application-form/internal/notify"
	"github.com/chiranSam/job-application-form/internal/pipeline"
	storepkg "github.com/chiranSam/job-application-form/internal/storage"
	"github.com/chiranSam/job-application-form/internal/sink"
)

const shutdownTimeout = 30 * time.Second

// backends are the collaborators selected by configuration
type backends struct {
	store     pipeline.DocumentStore
	extractor pipeline.Extractor
	sink      pipeline.RecordSink
	mailer    notify.Mailer
	filesDir  string
	closers   []func() error
}

func (b *backends) close(log logrus.FieldLogger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.WithError(err).Warn("Failed to close client")
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := config.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	// Google clients resolve credentials through ADC
	cfg.ApplyToEnv()

	ctx := context.Background()
	b, err := buildBackends(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize backends")
	}
	defer b.close(log)

	followUps := notify.NewFollowUpScheduler(b.mailer, cfg.FollowUpHour, log)
	webhook := notify.NewWebhook(cfg.WebhookURL, cfg.WebhookContactEmail, nil)

	proc := pipeline.New(b.store, b.extractor, b.sink, webhook, followUps, pipeline.Options{
		Namespace:     cfg.StorageNamespace,
		WebhookStatus: cfg.WebhookStatus,
		Timeout:       time.Duration(cfg.PipelineTimeout),
	}, log)

	server := api.NewServer(intake.NewValidator(cfg.MaxUploadBytes), proc, cfg.MaxUploadBytes, log)
	if b.filesDir != "" {
		server.ServeFiles(b.filesDir)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"port":    cfg.Port,
		"storage": cfg.StorageBackend,
		"ocr":     cfg.OCRBackend,
		"sink":    cfg.SinkBackend,
		"mail":    cfg.MailBackend,
	}).Info("Starting job application service")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	if err := run(srv, stop, log); err != nil {
		log.WithError(err).Error("Server stopped with error")
	}

	if dropped := followUps.Close(); dropped > 0 {
		log.WithField("dropped", dropped).Warn("Pending follow-up emails were not sent")
	}
}

// run serves until srv fails or a signal arrives on stop. On a signal the
// server is shut down gracefully. Either way the caller's cleanup still runs.
func run(srv *http.Server, stop <-chan os.Signal, log logrus.FieldLogger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func buildBackends(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*backends, error) {
	b := &backends{}

	var (
		gcs   *storepkg.GCSStore
		local *storepkg.LocalStore
	)
	switch cfg.StorageBackend {
	case config.StorageGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		gcs = storepkg.NewGCSStore(client, cfg.StorageBucket)
		b.store = gcs
	case config.StorageLocal:
		local = storepkg.NewLocalStore(cfg.UploadsDir, cfg.PublicBaseURL)
		b.store = local
		b.filesDir = local.Dir()
	}

	switch cfg.OCRBackend {
	case config.OCRVision:
		svc, err := extraction.NewVisionService(ctx, cfg.OCRRegion)
		if err != nil {
			b.close(log)
			return nil, err
		}
		runner := extraction.NewVisionRunner(svc, gcs, gcs.Bucket(), cfg.OCROutputPrefix)
		policy := extraction.PollPolicy{
			Interval: time.Duration(cfg.OCRPollInterval),
			MaxWait:  time.Duration(cfg.OCRMaxWait),
		}
		b.extractor = extraction.NewAsyncExtractor(runner, policy, log)
	case config.OCRGemini:
		gemini, err := extraction.NewGeminiExtractor(ctx, cfg.GoogleCloudProject, cfg.GoogleCloudLocation, "")
		if err != nil {
			b.close(log)
			return nil, err
		}
		b.closers = append(b.closers, gemini.Close)
		b.extractor = gemini
	case config.OCRLocal:
		b.extractor = extraction.NewLocalExtractor(local)
	}

	switch cfg.SinkBackend {
	case config.SinkSheets:
		svc, err := sink.NewSheetsService(ctx, cfg.GoogleCredentialsPath)
		if err != nil {
			b.close(log)
			return nil, err
		}
		b.sink = sink.NewSheetsSink(svc, cfg.SpreadsheetID, cfg.SheetRange)
	case config.SinkWorkbook:
		b.sink = sink.NewWorkbookSink(cfg.WorkbookPath)
	}

	switch cfg.MailBackend {
	case config.MailGmail:
		mailer, err := notify.NewGmailMailer(ctx, cfg.GoogleCredentialsPath, notify.DefaultTokenFile, cfg.MailSender)
		if err != nil {
			b.close(log)
			return nil, err
		}
		b.mailer = mailer
	default:
		b.mailer = notify.NewLogMailer(log)
	}

	return b, nil
}
