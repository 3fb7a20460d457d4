package cmd

import (
	"context"
	"os"
	"time"

	"github.com/AzielCF/az-social/automation/application"
	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/automation/repository"
	"github.com/AzielCF/az-social/core/config"
	"github.com/AzielCF/az-social/core/database"
	"github.com/AzielCF/az-social/infrastructure/valkey"
	"github.com/AzielCF/az-social/integrations/ai"
	"github.com/AzielCF/az-social/pkg/crypto"
	"github.com/AzielCF/az-social/pkg/msgworker"
	"github.com/AzielCF/az-social/platforms"
	"github.com/AzielCF/az-social/platforms/instagram"
	"github.com/AzielCF/az-social/platforms/youtube"
	"github.com/AzielCF/az-social/ui/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	appConfig *config.Config

	// Storage
	db            *gorm.DB
	vkClient      *valkey.Client
	queueRepo     *repository.QueueGormRepository
	accountRepo   *repository.AccountGormRepository
	autoreplyRepo *repository.AutoReplyGormRepository
	guard         domain.Guard

	// Automation
	platformRouter    *platforms.Router
	delayScheduler    *application.DelayScheduler
	dispatcher        *application.Dispatcher
	inboundPipeline   *application.InboundPipeline
	automationService *application.AutomationService
	inboundPool       *msgworker.Pool
	eventHub          *websocket.Hub
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-social",
	Short: "Scheduled publishing and auto-replies for Instagram and YouTube",
	Long: `az-social publishes scheduled posts to connected Instagram and YouTube
accounts and answers new comments and direct messages with moderated,
optionally AI-written replies.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initApp)
}

// flagKeys maps each persistent flag to the environment key it overrides.
var flagKeys = map[string]string{
	"port":               "APP_PORT",
	"debug":              "APP_DEBUG",
	"basic-auth":         "APP_BASIC_AUTH",
	"base-path":          "APP_BASE_PATH",
	"db-driver":          "DB_DRIVER",
	"db-name":            "DB_NAME",
	"tick":               "SCHEDULER_TICK_INTERVAL",
	"batch-size":         "SCHEDULER_BATCH_SIZE",
	"ai-provider":        "AI_PROVIDER",
	"message-workers":    "MESSAGE_WORKER_POOL_SIZE",
	"message-queue-size": "MESSAGE_WORKER_QUEUE_SIZE",
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("port", "p", "3000", "HTTP port | example: --port=3000")
	flags.BoolP("debug", "d", false, "verbose logging | example: --debug=true")
	flags.StringP("basic-auth", "b", "", "basic auth credentials for /api, comma separated | example: -b=user:secret")
	flags.String("base-path", "", `base path for subpath deployment | example: --base-path="/social"`)
	flags.String("db-driver", "sqlite", "database driver, sqlite or postgres | example: --db-driver=postgres")
	flags.String("db-name", "storages/social.db", "sqlite file or postgres database name | example: --db-name=social")
	flags.Duration("tick", time.Minute, "dispatcher tick interval | example: --tick=30s")
	flags.Int("batch-size", 10, "max actions dispatched per tick | example: --batch-size=20")
	flags.String("ai-provider", "none", "reply provider, openai, gemini or none | example: --ai-provider=openai")
	flags.Int("message-workers", 8, "inbound webhook workers | example: --message-workers=16")
	flags.Int("message-queue-size", 250, "queue size per inbound worker | example: --message-queue-size=500")
}

// applyFlags copies explicitly set flags over the environment. Unset flags
// leave the environment and config defaults in charge.
func applyFlags(v *viper.Viper) {
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && f.Changed {
			v.Set(key, f.Value.String())
		}
	})
}

func initApp() {
	v := viper.New()
	applyFlags(v)
	cfg, err := config.LoadConfigFrom(v)
	if err != nil {
		logrus.Fatalf("[APP] Invalid configuration: %v", err)
	}
	appConfig = cfg

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()

	// 1. Storage
	db, err = database.NewDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		logrus.Fatalf("[APP] %v", err)
	}

	var cipher *crypto.TokenCipher
	if cfg.Security.SecretKey != "" {
		if cipher, err = crypto.NewTokenCipher(cfg.Security.SecretKey); err != nil {
			logrus.Fatalf("[APP] Invalid APP_SECRET_KEY: %v", err)
		}
	} else {
		logrus.Warn("[APP] APP_SECRET_KEY is empty, platform tokens are stored unencrypted")
	}

	queueRepo = repository.NewQueueGormRepository(db)
	accountRepo = repository.NewAccountGormRepository(db, cipher)
	autoreplyRepo = repository.NewAutoReplyGormRepository(db)
	if err := migrate(ctx); err != nil {
		logrus.Fatalf("[APP] %v", err)
	}

	// 2. Dedup guard
	guard = repository.NewMemoryGuard()
	if cfg.Valkey.Enabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			logrus.WithError(err).Warn("[APP] Valkey unavailable, falling back to in-process dedup")
		} else {
			guard = repository.NewValkeyGuard(vkClient, cfg.Valkey.SourceTTL, cfg.Scheduler.StaleAfter)
			logrus.Infof("[APP] Valkey dedup guard at %s", cfg.Valkey.Address)
		}
	}

	// 3. Platforms
	igClient := instagram.NewClient(instagram.Config{
		BaseURL:           cfg.Instagram.GraphBaseURL,
		Version:           cfg.Instagram.GraphVersion,
		RefreshBaseURL:    cfg.Instagram.RefreshBaseURL,
		PublishGrace:      cfg.Instagram.PublishGrace,
		StatusPollEvery:   cfg.Instagram.StatusPollEvery,
		ActionTimeout:     cfg.Scheduler.ActionTimeout,
		RequestsPerSecond: cfg.Instagram.RequestsPerSecond,
		HTTPTimeout:       cfg.Instagram.HTTPTimeout,
	})
	ytClient := youtube.NewClient(youtube.Config{
		ClientID:          cfg.YouTube.ClientID,
		ClientSecret:      cfg.YouTube.ClientSecret,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		HTTPTimeout:       cfg.YouTube.HTTPTimeout,
	})
	platformRouter = platforms.NewRouter()
	platformRouter.Register(domain.PlatformInstagram, igClient)
	platformRouter.Register(domain.PlatformYouTube, ytClient)

	tokens := application.NewTokenManager(accountRepo, cfg.Tokens.RefreshWindow)
	tokens.RegisterRefresher(domain.PlatformInstagram, igClient)
	tokens.RegisterRefresher(domain.PlatformYouTube, ytClient)

	// 4. Decision engine
	aiServices, err := ai.NewFromConfig(ctx, cfg.AI)
	if err != nil {
		logrus.Fatalf("[APP] %v", err)
	}
	engine := application.NewDecisionEngine(
		application.DecisionConfig{FallbackMessage: cfg.AutoReply.FallbackMessage, AITimeout: cfg.AI.Timeout},
		aiServices.Text,
		aiServices.Classifier,
		aiServices.Fallback,
		autoreplyRepo,
	)

	// 5. Dispatch
	eventHub = websocket.NewHub(vkClient)
	delayScheduler = application.NewDelayScheduler(cfg.Scheduler.TickInterval)
	dispatcher = application.NewDispatcher(application.DispatcherConfig{
		TickInterval:   cfg.Scheduler.TickInterval,
		BatchSize:      cfg.Scheduler.BatchSize,
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		ActionTimeout:  cfg.Scheduler.ActionTimeout,
		StaleAfter:     cfg.Scheduler.StaleAfter,
	}, application.DispatcherDeps{
		Queue:     queueRepo,
		Accounts:  accountRepo,
		Logs:      autoreplyRepo,
		Platforms: platformRouter,
		Guard:     guard,
		Tokens:    tokens,
		Notifier:  eventHub,
	})

	inboundPipeline = application.NewInboundPipeline(application.InboundConfig{
		AuditSkipped:   cfg.AutoReply.AuditSkipped,
		KnownIDsWindow: cfg.AutoReply.KnownIDsWindow,
	}, application.InboundDeps{
		Accounts:  accountRepo,
		AutoReply: autoreplyRepo,
		Queue:     queueRepo,
		Guard:     guard,
		Engine:    engine,
		Delays:    delayScheduler,
		Firer:     dispatcher,
		Platforms: platformRouter,
		Tokens:    tokens,
	})
	dispatcher.RegisterPeriodic("comment-poll", cfg.Scheduler.CommentPollInterval, func(ctx context.Context) {
		n, err := inboundPipeline.PollComments(ctx)
		if err != nil {
			logrus.WithError(err).Warn("[APP] Comment poll failed")
			return
		}
		if n > 0 {
			logrus.Infof("[APP] Comment poll handled %d new comments", n)
		}
	})

	automationService = application.NewAutomationService(application.ServiceDeps{
		Queue:        queueRepo,
		Accounts:     accountRepo,
		AutoReply:    autoreplyRepo,
		Dispatcher:   dispatcher,
		Delays:       delayScheduler,
		DefaultDelay: domain.RandomDelay(cfg.AutoReply.DefaultMinSeconds, cfg.AutoReply.DefaultMaxSeconds),
	})

	inboundPool = msgworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// startBackground starts the dispatcher, the inbound pool and the event hub.
func startBackground(ctx context.Context) {
	go eventHub.Run(ctx)
	inboundPool.Start(ctx)
	if err := dispatcher.Start(ctx); err != nil {
		logrus.Fatalf("[APP] %v", err)
	}
}

// StopApp stops background work first, then closes storage.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if dispatcher != nil {
		dispatcher.Stop()
	}
	if delayScheduler != nil {
		delayScheduler.Stop()
	}
	if inboundPool != nil {
		inboundPool.Stop()
	}
	if vkClient != nil {
		vkClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
