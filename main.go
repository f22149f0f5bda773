package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"studyhub/api"
	"studyhub/model"
	"studyhub/platform"
	"studyhub/service"
)

var logger = platform.Logger

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := platform.LoadConfig(".env")
	if err != nil {
		return err
	}

	if err := platform.InitFile(cfg.LogDir, "gin"); err != nil {
		return fmt.Errorf("init access log: %w", err)
	}
	if err := platform.InitAppLogger(cfg.LogDir, "app"); err != nil {
		return fmt.Errorf("init app log: %w", err)
	}

	//init database
	db, err := platform.OpenDB(cfg.Database)
	if err != nil {
		return err
	}
	if err := model.InstallDB(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	llm := platform.NewLLMClient(cfg.LLM)

	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	users := service.NewUserService(db, tokens)
	assignments := service.NewAssignmentService(db)
	generator := service.NewOpenAIGenerator(llm, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	uploads := service.NewUploadStore(cfg.UploadDir)
	assistant := service.NewAssistantService(db, assignments, generator,
		service.WithStrictOwnership(cfg.StrictOwnership),
		service.WithUploads(uploads))

	r := api.NewRouter(api.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		Tokens:      tokens,
		Users:       users,
		Assignments: assignments,
		Assistant:   assistant,
		Uploads:     uploads,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SMTP.Enabled() {
		mailer := service.NewSMTPMailer(cfg.SMTP.Addr(), cfg.SMTP.Host, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		reminders := service.NewReminderService(assignments, users, mailer, cfg.Reminder.Window)
		c := cron.New()
		if _, err := c.AddFunc(cfg.Reminder.Schedule, func() {
			if _, err := reminders.Run(ctx, time.Now()); err != nil {
				logger.Warnf("[%s] reminders failed, %s", "scheduled task", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid REMINDER_CRON %q: %w", cfg.Reminder.Schedule, err)
		}
		c.Start()
		defer c.Stop()
	} else {
		logger.Info("SMTP_HOST not set, due-date reminders disabled")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server started on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
