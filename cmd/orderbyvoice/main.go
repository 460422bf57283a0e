// cmd/orderbyvoice/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orderbyvoice/internal/catalog"
	"orderbyvoice/internal/common/config"
	"orderbyvoice/internal/common/database"
	applogger "orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/common/observability"
	"orderbyvoice/internal/conversation"
	"orderbyvoice/internal/extract"
	"orderbyvoice/internal/llm"
	"orderbyvoice/internal/notify"
	"orderbyvoice/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := applogger.New("info", "console")
	defer zapLog.Sync()

	log := applogger.NewZapAdapter(zapLog)

	zapLog.Info("Starting orderbyvoice...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// Persistence is optional for local runs; without postgres the demo
	// catalog and the in-memory store take over.
	var (
		sessions   store.SessionStore
		customers  store.CustomerStore
		catalogSrc conversation.Catalog
	)

	if cfg.Database.Postgres.Host != "" {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")

		sessions = store.NewPostgresSessionStore(pg.GetDB())
		customers = store.NewPostgresCustomerStore(pg.GetDB())

		pgCatalog := catalog.NewPostgresCatalog(pg.GetDB())
		ttl := time.Duration(cfg.Database.Redis.CacheTTL) * time.Second
		catalogSrc = catalog.NewCache(pgCatalog, pgCatalog, rdb.GetClient(), ttl, log)
	} else {
		zapLog.Info("no postgres configured, running with demo catalog and in-memory store")
		sessions = store.NewMemorySessionStore()
		customers = store.NewMemoryCustomerStore()
		demo := catalog.DemoCatalog()
		catalogSrc = catalog.NewDirect(demo, demo, log)
	}

	regexExtractor := extract.New(extract.Config{
		NameCues:    cfg.Conversation.NameCues,
		AddressCues: cfg.Conversation.AddressCues,
	})

	var extractor conversation.InfoExtractor = conversation.NewRegexExtractor(regexExtractor)
	if cfg.GenAI.Enabled {
		client, err := llm.NewClient(cfg.GenAI, log)
		if err != nil {
			zapLog.Fatal("genai client init failed", zap.Error(err))
		}
		extractor = llm.NewExtractor(client, regexExtractor, log)
		zapLog.Info("GenAI extraction enabled", zap.String("baseUrl", cfg.GenAI.BaseURL))
	}

	notifier, err := notify.New(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}

	engine := conversation.NewEngine(sessions, customers, catalogSrc, extractor, cfg.Conversation, obs, log)

	if cfg.Metrics.Enabled {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			zapLog.Info("metrics endpoint listening", zap.String("address", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
				zapLog.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go runREPL(ctx, engine, notifier, sessions, zapLog)

	sig := <-sigCh
	zapLog.Info("shutting down", zap.String("signal", sig.String()))
}

// runREPL reads one utterance per line and speaks the responses back on
// stdout. Lines are turns for a single caller; the session carries over
// through the chat id of the previous result.
func runREPL(ctx context.Context, engine *conversation.Engine, notifier *notify.Notifier, sessions store.SessionStore, zapLog *zap.Logger) {
	fmt.Println("OrderByVoice - digite sua mensagem (Ctrl+D para sair)")

	var chatID string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		utterance := strings.TrimSpace(scanner.Text())
		if utterance == "" {
			continue
		}

		result, err := engine.ProcessTurn(ctx, conversation.TurnInput{
			ChatID:    chatID,
			Utterance: utterance,
		})
		if err != nil {
			zapLog.Error("turn failed", zap.Error(err))
			fmt.Println("Ocorreu um erro durante o processamento. Tente novamente.")
			continue
		}

		if result.SessionID != "" {
			chatID = result.SessionID
		}
		fmt.Println(result.Response)

		if result.Status.IsTerminal() {
			if result.Summary != nil {
				if sess, err := sessions.GetByID(ctx, result.SessionID); err == nil {
					notifier.OrderFinalized(ctx, sess)
				}
			}
			chatID = ""
		}
	}
}
