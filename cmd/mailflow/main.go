// Command mailflow runs one triage cycle: fetch unread mail, route each
// email through the workflow, then exit. Run it from cron or a systemd timer
// for continuous operation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	calendarapi "google.golang.org/api/calendar/v3"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/hupe1980/mailflow"
	"github.com/hupe1980/mailflow/config"
	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/gcal"
	"github.com/hupe1980/mailflow/gmail"
	"github.com/hupe1980/mailflow/logging"
	"github.com/hupe1980/mailflow/model"
	"github.com/hupe1980/mailflow/model/anthropic"
	"github.com/hupe1980/mailflow/model/openai"
	"github.com/hupe1980/mailflow/notify"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./mailflow.yaml if present)")
	logFormat := flag.String("log-format", "json", "log format: json or text")
	flag.Parse()

	if err := run(*configPath, *logFormat); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, logFormat string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.LogLevelInfo,
		Format:    logFormat,
		Output:    os.Stdout,
		Component: "mailflow",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	httpClient, err := gmail.OAuthClient(ctx, cfg.CredentialsFile, cfg.TokenFile,
		gmailapi.GmailModifyScope, calendarapi.CalendarScope)
	if err != nil {
		return fmt.Errorf("google oauth: %w", err)
	}

	mail, err := gmail.NewStoreWithClient(ctx, httpClient, func(o *gmail.Options) {
		o.Logger = logger.WithComponent("gmail")
	})
	if err != nil {
		return err
	}

	cal, err := gcal.NewClient(ctx, httpClient, func(o *gcal.Options) {
		o.Logger = logger.WithComponent("gcal")
	})
	if err != nil {
		return err
	}

	var llm model.Model
	switch cfg.Provider {
	case config.ProviderAnthropic:
		llm = anthropic.NewModel(func(o *anthropic.Options) {
			if strings.HasPrefix(cfg.LLMModel, "claude") {
				o.Model = anthropicsdk.Model(cfg.LLMModel)
			}
			o.APIKey = cfg.AnthropicAPIKey
		})
	default:
		llm = openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.LLMModel
		})
	}

	embedder := openai.NewEmbedder(func(o *openai.Options) {
		o.EmbeddingModel = cfg.EmbeddingModel
	})

	var notifier core.Notifier = core.NoOpNotifier{}
	if cfg.SlackEnabled {
		notifier = notify.NewSlackNotifier(cfg.SlackWebhookURL, func(o *notify.Options) {
			o.Logger = logger.WithComponent("notify")
		})
	}

	app, err := mailflow.New(ctx, mail, cal, llm, embedder, func(o *mailflow.Options) {
		o.PolicyDir = cfg.PolicyDir
		o.EmbedCachePath = cfg.EmbedCachePath
		o.PolicyTopK = cfg.RAGTopK
		o.TimezoneOverride = cfg.TimezoneOverride
		o.FallbackTimezone = cfg.FallbackTimezone
		o.MaxResults = cfg.MaxResults
		o.MaxAlternatives = cfg.MaxAlternatives
		o.Notifier = notifier
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	summary, err := app.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("processed=%d booked=%d suggested=%d drafted=%d skipped=%d failed=%d\n",
		summary.Processed, summary.Booked, summary.Suggested, summary.Drafted, summary.Skipped, summary.Failed)
	return nil
}
