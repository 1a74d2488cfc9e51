package main

import (
	"os"
	"os/signal"
	"syscall"

	"unholygrail/internal/config"
	"unholygrail/internal/observability"
	"unholygrail/pkg/mailer"
	"unholygrail/pkg/rabbitmq"

	"github.com/sirupsen/logrus"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	configureLogging(cfg.LogLevel)

	// --- Storage ---
	users, closeStore, err := openUserRepository(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open user store")
	}
	defer closeStore()

	metrics := observability.NewMetrics()

	// --- Initialize RabbitMQ Client ---
	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
		URL:     cfg.RabbitMQURL,
		Queue:   cfg.MailQueue,
		Metrics: metrics,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize RabbitMQ client")
	}
	defer mqClient.Close()

	// --- Mail Consumer ---
	mail, err := newMailer(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize mailer")
	}
	if err := mqClient.ConsumeMail(mail.Handle); err != nil {
		logrus.WithError(err).Fatal("Failed to start mail consumer")
	}

	app, authService := NewApp(cfg, Dependencies{
		Users:    users,
		Notifier: mqClient,
		Metrics:  metrics,
	})

	// --- Start HTTP Server ---
	go func() {
		logrus.WithField("addr", cfg.AppPort).Info("Starting server")
		if err := app.Listen(cfg.AppPort); err != nil {
			logrus.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		logrus.WithError(err).Error("Error during Fiber shutdown")
	}
	authService.Wait()

	logrus.Info("Server gracefully stopped")
}

// newMailer delivers through SMTP when SMTP_ADDR is set and only logs otherwise.
func newMailer(cfg *config.Config) (*mailer.Mailer, error) {
	if cfg.SMTPAddr == "" {
		return mailer.New(mailer.LogSender{})
	}
	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		return nil, err
	}
	return mailer.New(sender)
}

func configureLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown LOG_LEVEL, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
