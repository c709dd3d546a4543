package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nimebot/internal/catalog"
	"nimebot/internal/chat"
	"nimebot/internal/config"
	"nimebot/internal/dispatch"
	"nimebot/internal/genai"
	"nimebot/internal/intent"
	"nimebot/internal/logging"
	"nimebot/internal/manhwa"
	"nimebot/internal/status"
	"nimebot/internal/subtitle"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("🚀 Starting Nime...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := genai.NewClient(genai.Config{
		APIKey:      cfg.GenAI.APIKey,
		BaseURL:     cfg.GenAI.BaseURL,
		Model:       cfg.GenAI.Model,
		Timeout:     cfg.GenAI.Timeout,
		Temperature: 0.2,
	})
	if err != nil {
		return fmt.Errorf("genai client: %w", err)
	}
	classifier, err := intent.NewClassifier(gen, log)
	if err != nil {
		return fmt.Errorf("intent classifier: %w", err)
	}

	cat := catalog.New(catalog.DefaultConfig(cfg.Catalog.BaseURL, cfg.Catalog.ImageProxyURL), log)
	resolver := catalog.NewResolver(gen, log)

	client, err := newWhatsAppClient(ctx, cfg.SessionDB, log)
	if err != nil {
		return err
	}

	state := status.NewLoginState()
	d := dispatch.New(dispatch.Config{CommandPrefix: cfg.CommandPrefix}, dispatch.Deps{
		Messenger:  chat.NewWhatsApp(client, log),
		Classifier: classifier,
		Catalog:    cat,
		Selector:   resolver,
		Manhwa:     manhwa.NewProducer(cat, resolver, log),
		Subtitles:  subtitle.NewProducer(cat, log),
		Usage:      cat,
		Registry:   dispatch.NewRegistry(),
	}, log)
	client.AddEventHandler(eventHandler(ctx, d, state, log))

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           status.NewServer(state, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("status page listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status page stopped")
			stop()
		}
	}()

	if err := connect(ctx, client, state, log); err != nil {
		return fmt.Errorf("connect to WhatsApp: %w", err)
	}
	log.Info().Str("prefix", cfg.CommandPrefix).Msg("🌐 connected, waiting for messages")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	client.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("status page shutdown")
	}

	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn().Msg("pipelines still running at exit")
	}
	return nil
}
