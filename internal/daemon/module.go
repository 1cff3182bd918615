package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/chatcore/internal/account"
	"github.com/matheus3301/chatcore/internal/api"
	"github.com/matheus3301/chatcore/internal/auth"
	"github.com/matheus3301/chatcore/internal/blob"
	"github.com/matheus3301/chatcore/internal/bus"
	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/config"
	"github.com/matheus3301/chatcore/internal/lock"
	"github.com/matheus3301/chatcore/internal/logging"
	"github.com/matheus3301/chatcore/internal/messaging"
	"github.com/matheus3301/chatcore/internal/metrics"
	"github.com/matheus3301/chatcore/internal/profile"
	"github.com/matheus3301/chatcore/internal/push"
	"github.com/matheus3301/chatcore/internal/resolve"
	"github.com/matheus3301/chatcore/internal/screens"
	"github.com/matheus3301/chatcore/internal/store"
	"github.com/matheus3301/chatcore/internal/store/mongostore"
	"github.com/matheus3301/chatcore/internal/unread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// connectTimeout bounds the initial connection to a remote store.
const connectTimeout = 10 * time.Second

// Params holds the resolved profile passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideMetrics,
			provideLock,
			provideStore,
			provideBlobs,
			provideNotifier,
			provideAuth,
			provideTracker,
			provideAggregator,
			provideResolver,
			provideSender,
			provideRegistrar,
			provideProfiles,
			provideScreens,
			provideService,
			provideMetricsServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, cfg.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by two daemons.
func provideStore(p Params, cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		s, err := mongostore.Connect(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("store initialized", zap.String("backend", "mongo"), zap.String("database", cfg.Store.MongoDatabase))
		return s, nil
	}

	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("backend", "sqlite"), zap.String("path", dbPath))
	return db, nil
}

func provideBlobs(p Params, cfg *config.Config) (blob.Store, error) {
	if cfg.Blob.Backend == "s3" {
		return blob.NewS3(blob.S3Config{
			Bucket:    cfg.Blob.S3Bucket,
			Region:    cfg.Blob.S3Region,
			Endpoint:  cfg.Blob.S3Endpoint,
			AccessKey: cfg.Blob.S3AccessKey,
			SecretKey: cfg.Blob.S3SecretKey,
			PublicURL: cfg.Blob.BaseURL,
		})
	}
	return blob.NewLocal(profile.BlobDir(p.ProfileName), cfg.Blob.BaseURL)
}

func provideNotifier(lc fx.Lifecycle, cfg *config.Config, s store.Store, logger *zap.Logger) (push.Notifier, error) {
	switch cfg.Push.Backend {
	case "webpush":
		return push.NewWebPush(s, push.WebPushConfig{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
		}, logger), nil
	case "nats":
		nc, err := push.DialNATS(cfg.Push.NATSURL)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(func() error { return nc.Drain() }))
		logger.Info("push via nats", zap.String("subject", cfg.Push.NATSSubject))
		return push.NewNATS(nc, cfg.Push.NATSSubject), nil
	}
	return push.Nop{}, nil
}

func provideAuth(cfg *config.Config) auth.Provider {
	if cfg.Account.Token != "" {
		return auth.NewToken(cfg.Account.Token, cfg.Account.TokenSecret)
	}
	return auth.Static(cfg.Account.UserID)
}

func provideTracker(s store.Store, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *unread.Tracker {
	return unread.NewTracker(s, b, m, logger)
}

func provideAggregator(s store.Store, t *unread.Tracker, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *chatlist.Aggregator {
	return chatlist.NewAggregator(s, t, chatlist.Options{
		StaleAfter:      cfg.Presence.StaleAfter.Duration,
		PlaceholderName: cfg.ChatList.PlaceholderName,
		Concurrency:     cfg.ChatList.Concurrency,
	}, m, logger)
}

func provideResolver(s store.Store, b *bus.Bus, logger *zap.Logger) *resolve.Resolver {
	return resolve.New(s, b, logger)
}

func provideSender(s store.Store, blobs blob.Store, n push.Notifier, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *messaging.Sender {
	return messaging.NewSender(s, blobs, n, b, m, logger)
}

func provideRegistrar(s store.Store, logger *zap.Logger) *push.Registrar {
	return push.NewRegistrar(s, logger)
}

func provideProfiles(s store.Store, r *resolve.Resolver, logger *zap.Logger) *account.Profiles {
	return account.New(s, r, logger)
}

func provideScreens(a auth.Provider, s store.Store, agg *chatlist.Aggregator, t *unread.Tracker, cfg *config.Config, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) (*screens.Manager, error) {
	userID, err := a.CurrentUserID()
	if err != nil {
		return nil, fmt.Errorf("resolve signed-in user: %w", err)
	}
	logger.Info("signed in", zap.String("user_id", userID))
	return screens.NewManager(screens.Deps{
		UserID:     userID,
		Store:      s,
		Aggregator: agg,
		Unread:     t,
		Bus:        b,
		Metrics:    m,
		Logger:     logger,
		Heartbeat:  cfg.Presence.HeartbeatInterval.Duration,
		Refresh:    cfg.ChatList.RefreshInterval.Duration,
	}), nil
}

func provideService(a auth.Provider, mgr *screens.Manager, agg *chatlist.Aggregator, s store.Store, t *unread.Tracker, r *resolve.Resolver, snd *messaging.Sender, reg *push.Registrar, prof *account.Profiles, b *bus.Bus, logger *zap.Logger) api.ChatServiceServer {
	return api.NewService(a, mgr, agg, s, t, r, snd, reg, prof, b, logger)
}

// provideMetricsServer returns nil when metrics.addr is unset.
func provideMetricsServer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *metrics.Server {
	if cfg.Metrics.Addr == "" {
		return nil
	}
	return metrics.NewServer(cfg.Metrics.Addr, m, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, ms *metrics.Server, mgr *screens.Manager, s store.Store, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			if ms != nil {
				ms.Start()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// final offline writes go out before the store closes
			if err := mgr.Shutdown(); err != nil {
				logger.Warn("error destroying screens", zap.Error(err))
			}
			srv.Stop(ctx)
			if ms != nil {
				ms.Stop()
			}
			if err := s.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
