package ioc

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/golobby/container/v3"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coreledger/platform/internal/bonus"
	"github.com/coreledger/platform/internal/cache"
	"github.com/coreledger/platform/internal/config"
	"github.com/coreledger/platform/internal/crypto"
	"github.com/coreledger/platform/internal/eventbus"
	"github.com/coreledger/platform/internal/eventbus/kafkabus"
	"github.com/coreledger/platform/internal/gateway"
	"github.com/coreledger/platform/internal/kyc"
	"github.com/coreledger/platform/internal/ledger"
	"github.com/coreledger/platform/internal/notification"
	"github.com/coreledger/platform/internal/opstate"
	"github.com/coreledger/platform/internal/otp"
	"github.com/coreledger/platform/internal/recovery"
	"github.com/coreledger/platform/internal/repository"
	"github.com/coreledger/platform/internal/repository/mongodb"
	"github.com/coreledger/platform/internal/saga"
	"github.com/coreledger/platform/internal/session"
	"github.com/coreledger/platform/internal/user"
	"github.com/coreledger/platform/internal/wallet"
)

// ContainerBuilder assembles every component a cmd/ entrypoint needs,
// chain-style: each With* method registers a singleton resolver and panics
// on a wiring error, since a process that cannot wire its own dependencies
// has nothing useful to do. Call Build once all the With* calls needed by
// the entrypoint have run.
type ContainerBuilder struct {
	Container container.Container
}

// NewContainerBuilder opens an empty container and registers itself and
// the container.Container value in it, so later resolvers can pull the
// builder back out for manual c.Resolve calls.
func NewContainerBuilder() *ContainerBuilder {
	c := container.New()

	b := &ContainerBuilder{Container: c}

	if err := c.Singleton(func() container.Container { return b.Container }); err != nil {
		slog.Error("failed to register container.Container", "err", err)
		panic(err)
	}
	if err := c.Singleton(func() *ContainerBuilder { return b }); err != nil {
		slog.Error("failed to register *ContainerBuilder", "err", err)
		panic(err)
	}

	return b
}

// Build returns the assembled container.
func (b *ContainerBuilder) Build() container.Container {
	return b.Container
}

// With registers an arbitrary singleton resolver, for entrypoint-specific
// wiring that doesn't belong in a shared With* method.
func (b *ContainerBuilder) With(resolver interface{}) *ContainerBuilder {
	if err := b.Container.Singleton(resolver); err != nil {
		slog.Error("failed to register resolver", "err", err)
		panic(err)
	}
	return b
}

// WithEnvFile loads a .env file when DEV_ENV=true and registers Config,
// read once from the process environment.
func (b *ContainerBuilder) WithEnvFile() *ContainerBuilder {
	if os.Getenv("DEV_ENV") == "true" {
		if err := godotenv.Load(); err != nil {
			slog.Warn("no .env file loaded", "err", err)
		}
	}

	if err := b.Container.Singleton(func() (Config, error) {
		return EnvironmentConfig()
	}); err != nil {
		slog.Error("failed to load Config", "err", err)
		panic(err)
	}

	return b
}

// WithMongo connects to MongoDB and registers both the client and the
// database handle components resolve their repositories against.
func (b *ContainerBuilder) WithMongo() *ContainerBuilder {
	c := b.Container

	if err := c.Singleton(func() (*mongo.Client, error) {
		var cfg Config
		if err := c.Resolve(&cfg); err != nil {
			slog.Error("failed to resolve Config for *mongo.Client", "err", err)
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			slog.Error("failed to connect to MongoDB", "err", err)
			return nil, err
		}
		return client, nil
	}); err != nil {
		slog.Error("failed to register *mongo.Client", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*mongo.Database, error) {
		var cfg Config
		if err := c.Resolve(&cfg); err != nil {
			return nil, err
		}
		var client *mongo.Client
		if err := c.Resolve(&client); err != nil {
			slog.Error("failed to resolve *mongo.Client for *mongo.Database", "err", err)
			return nil, err
		}
		return client.Database(cfg.Mongo.Database), nil
	}); err != nil {
		slog.Error("failed to register *mongo.Database", "err", err)
		panic(err)
	}

	return b
}

// WithCache registers cache.Cache: Redis when REDIS_ADDR is set, the
// in-process TTL map otherwise.
func (b *ContainerBuilder) WithCache() *ContainerBuilder {
	c := b.Container

	if err := c.Singleton(func() (cache.Cache, error) {
		var cfg Config
		if err := c.Resolve(&cfg); err != nil {
			return nil, err
		}
		if cfg.Redis.Addr == "" {
			return cache.NewInProcess(), nil
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		return cache.NewRedis(client), nil
	}); err != nil {
		slog.Error("failed to register cache.Cache", "err", err)
		panic(err)
	}

	return b
}

// WithEventBus registers eventbus.Bus: Kafka when KAFKA_BOOTSTRAP_SERVERS
// is set, the in-memory bus otherwise (single-process deployments and tests).
func (b *ContainerBuilder) WithEventBus() *ContainerBuilder {
	c := b.Container

	if err := c.Singleton(func() (eventbus.Bus, error) {
		var cfg Config
		if err := c.Resolve(&cfg); err != nil {
			return nil, err
		}
		if cfg.Kafka.BootstrapServers == "" {
			return eventbus.NewInMemory(), nil
		}
		return kafkabus.New(kafkabus.Config{
			BootstrapServers: cfg.Kafka.BootstrapServers,
			GroupID:          cfg.Kafka.GroupID,
		})
	}); err != nil {
		slog.Error("failed to register eventbus.Bus", "err", err)
		panic(err)
	}

	return b
}

// WithConfigStore registers the Config Store (C1) on top of the generic
// Entry repository.
func (b *ContainerBuilder) WithConfigStore() *ContainerBuilder {
	c := b.Container

	if err := c.Singleton(func() (*config.Store, error) {
		var db *mongo.Database
		if err := c.Resolve(&db); err != nil {
			slog.Error("failed to resolve *mongo.Database for *config.Store", "err", err)
			return nil, err
		}
		var ca cache.Cache
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[config.Entry](db, "config_entries", "ConfigEntry", nil, ca)
		return config.New(repo, ca), nil
	}); err != nil {
		slog.Error("failed to register *config.Store", "err", err)
		panic(err)
	}

	return b
}

// WithRepositories registers every domain repository port over a
// Mongo-backed generic repository.Repository[T], following the Config
// Store's own pattern: each is a thin adapter
// (internal/<domain>.New*Repository), except sessions, which are registered
// as the generic repository.Repository[session.Session] itself.
func (b *ContainerBuilder) WithRepositories() *ContainerBuilder {
	c := b.Container

	if err := c.Singleton(func() (user.Repository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[user.User](db, "users", "User", nil, ca)
		return user.NewRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register user.Repository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (repository.Repository[session.Session], error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		return mongodb.New[session.Session](db, "sessions", "Session", nil, ca), nil
	}); err != nil {
		slog.Error("failed to register repository.Repository[session.Session]", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (otp.Repository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[otp.Settings](db, "otp_settings", "OTPSettings", nil, ca)
		return otp.NewRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register otp.Repository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (ledger.AccountRepository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[ledger.Account](db, "ledger_accounts", "Account", nil, ca)
		return ledger.NewAccountRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register ledger.AccountRepository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (ledger.PostingRepository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[ledger.Posting](db, "ledger_postings", "Posting", nil, ca)
		return ledger.NewPostingRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register ledger.PostingRepository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (wallet.Repository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[wallet.Wallet](db, "wallets", "Wallet", nil, ca)
		return wallet.NewRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register wallet.Repository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (wallet.TransactionRepository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[wallet.WalletTransaction](db, "wallet_transactions", "WalletTransaction", nil, ca)
		return wallet.NewTransactionRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register wallet.TransactionRepository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (wallet.TransferRepository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[wallet.Transfer](db, "wallet_transfers", "Transfer", nil, ca)
		return wallet.NewTransferRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register wallet.TransferRepository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (bonus.TemplateRepository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[bonus.Template](db, "bonus_templates", "BonusTemplate", nil, ca)
		return bonus.NewTemplateRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register bonus.TemplateRepository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (bonus.UserBonusRepository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[bonus.UserBonus](db, "user_bonuses", "UserBonus", nil, ca)
		return bonus.NewUserBonusRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register bonus.UserBonusRepository", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (notification.Repository, error) {
		var db *mongo.Database
		var ca cache.Cache
		if err := c.Resolve(&db); err != nil {
			return nil, err
		}
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		repo := mongodb.New[notification.Notification](db, "notifications", "Notification", nil, ca)
		return notification.NewRepository(repo), nil
	}); err != nil {
		slog.Error("failed to register notification.Repository", "err", err)
		panic(err)
	}

	return b
}

// WithDomainServices wires the Session/Token Engine, Ledger Engine,
// Wallet/Transfer Engine, Bonus Engine, KYC service and Notification
// service together out of the repositories/cache/event bus registered by
// the earlier With* calls.
func (b *ContainerBuilder) WithDomainServices() *ContainerBuilder {
	c := b.Container

	if err := c.Singleton(func() (*session.TokenIssuer, error) {
		var cfg Config
		if err := c.Resolve(&cfg); err != nil {
			return nil, err
		}
		return session.NewTokenIssuer([]byte(cfg.JWT.Secret), cfg.JWT.AccessTTL), nil
	}); err != nil {
		slog.Error("failed to register *session.TokenIssuer", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*otp.Verifier, error) {
		var repo otp.Repository
		if err := c.Resolve(&repo); err != nil {
			return nil, err
		}
		return otp.NewVerifier(repo), nil
	}); err != nil {
		slog.Error("failed to register *otp.Verifier", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*session.Engine, error) {
		var sessions repository.Repository[session.Session]
		if err := c.Resolve(&sessions); err != nil {
			return nil, err
		}
		var users user.Repository
		if err := c.Resolve(&users); err != nil {
			return nil, err
		}
		var issuer *session.TokenIssuer
		if err := c.Resolve(&issuer); err != nil {
			return nil, err
		}
		var verifier *otp.Verifier
		if err := c.Resolve(&verifier); err != nil {
			return nil, err
		}
		var cfg Config
		if err := c.Resolve(&cfg); err != nil {
			return nil, err
		}

		resolveScheme := func(context.Context, string) crypto.Scheme { return crypto.SchemeArgon2id }

		return session.NewEngine(
			sessions, users, issuer, resolveScheme,
			cfg.JWT.RefreshTTL, cfg.JWT.AccessTTL,
			session.WithTwoFactorVerifier(verifier),
			session.WithMaxActiveSessions(5),
		), nil
	}); err != nil {
		slog.Error("failed to register *session.Engine", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (ledger.SessionFactory, error) {
		var client *mongo.Client
		if err := c.Resolve(&client); err != nil {
			return nil, err
		}
		return func(ctx context.Context) (repository.Session, error) {
			return mongodb.NewSession(ctx, client)
		}, nil
	}); err != nil {
		slog.Error("failed to register ledger.SessionFactory", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*ledger.Engine, error) {
		var accounts ledger.AccountRepository
		if err := c.Resolve(&accounts); err != nil {
			return nil, err
		}
		var postings ledger.PostingRepository
		if err := c.Resolve(&postings); err != nil {
			return nil, err
		}
		var newSession ledger.SessionFactory
		if err := c.Resolve(&newSession); err != nil {
			return nil, err
		}
		return ledger.NewEngine(accounts, postings, newSession), nil
	}); err != nil {
		slog.Error("failed to register *ledger.Engine", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*saga.Orchestrator, error) {
		var ca cache.Cache
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		return saga.NewOrchestrator(ca), nil
	}); err != nil {
		slog.Error("failed to register *saga.Orchestrator", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*opstate.Tracker, error) {
		var ca cache.Cache
		if err := c.Resolve(&ca); err != nil {
			return nil, err
		}
		return opstate.NewTracker(ca), nil
	}); err != nil {
		slog.Error("failed to register *opstate.Tracker", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*wallet.Service, error) {
		var ledgerEngine *ledger.Engine
		if err := c.Resolve(&ledgerEngine); err != nil {
			return nil, err
		}
		var wallets wallet.Repository
		if err := c.Resolve(&wallets); err != nil {
			return nil, err
		}
		var transactions wallet.TransactionRepository
		if err := c.Resolve(&transactions); err != nil {
			return nil, err
		}
		var transfers wallet.TransferRepository
		if err := c.Resolve(&transfers); err != nil {
			return nil, err
		}
		var orchestrator *saga.Orchestrator
		if err := c.Resolve(&orchestrator); err != nil {
			return nil, err
		}
		var tracker *opstate.Tracker
		if err := c.Resolve(&tracker); err != nil {
			return nil, err
		}
		return wallet.NewService(ledgerEngine, wallets, transactions, transfers, orchestrator, tracker), nil
	}); err != nil {
		slog.Error("failed to register *wallet.Service", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*wallet.TransferRecoveryHandler, error) {
		var svc *wallet.Service
		if err := c.Resolve(&svc); err != nil {
			return nil, err
		}
		var postings ledger.PostingRepository
		if err := c.Resolve(&postings); err != nil {
			return nil, err
		}
		return wallet.NewTransferRecoveryHandler(svc, postings), nil
	}); err != nil {
		slog.Error("failed to register *wallet.TransferRecoveryHandler", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*recovery.Job, error) {
		var tracker *opstate.Tracker
		if err := c.Resolve(&tracker); err != nil {
			return nil, err
		}
		var newSession ledger.SessionFactory
		if err := c.Resolve(&newSession); err != nil {
			return nil, err
		}
		job := recovery.NewJob(tracker, newSession)

		var handler *wallet.TransferRecoveryHandler
		if err := c.Resolve(&handler); err != nil {
			return nil, err
		}
		recovery.RegisterHandler(job, handler)

		return job, nil
	}); err != nil {
		slog.Error("failed to register *recovery.Job", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*kyc.Service, error) {
		var users user.Repository
		if err := c.Resolve(&users); err != nil {
			return nil, err
		}
		return kyc.NewService(kyc.StubProvider{}, users), nil
	}); err != nil {
		slog.Error("failed to register *kyc.Service", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*bonus.Service, error) {
		var templates bonus.TemplateRepository
		if err := c.Resolve(&templates); err != nil {
			return nil, err
		}
		var bonuses bonus.UserBonusRepository
		if err := c.Resolve(&bonuses); err != nil {
			return nil, err
		}
		var wallets *wallet.Service
		if err := c.Resolve(&wallets); err != nil {
			return nil, err
		}
		var users user.Repository
		if err := c.Resolve(&users); err != nil {
			return nil, err
		}
		var bus eventbus.Bus
		if err := c.Resolve(&bus); err != nil {
			return nil, err
		}

		svc := bonus.NewService(templates, bonuses, bonus.NewDefaultRegistry(), wallets)
		svc.WithEventBus(bus)
		svc.WithUsers(users)
		return svc, nil
	}); err != nil {
		slog.Error("failed to register *bonus.Service", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*notification.Service, error) {
		var notifications notification.Repository
		if err := c.Resolve(&notifications); err != nil {
			return nil, err
		}
		return notification.NewService(notifications, notification.NewRegistry()), nil
	}); err != nil {
		slog.Error("failed to register *notification.Service", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*notification.Subscriber, error) {
		var svc *notification.Service
		if err := c.Resolve(&svc); err != nil {
			return nil, err
		}
		return notification.NewSubscriber(svc), nil
	}); err != nil {
		slog.Error("failed to register *notification.Subscriber", "err", err)
		panic(err)
	}

	return b
}

// WithGateway registers the HTTP auth middleware, circuit breaker, rate
// limiter, handlers and router (C11).
func (b *ContainerBuilder) WithGateway() *ContainerBuilder {
	c := b.Container

	if err := c.Singleton(func() (*gateway.CircuitBreaker, error) {
		return gateway.NewCircuitBreaker(), nil
	}); err != nil {
		slog.Error("failed to register *gateway.CircuitBreaker", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*gateway.RateLimiter, error) {
		return gateway.NewRateLimiter(100, time.Minute), nil
	}); err != nil {
		slog.Error("failed to register *gateway.RateLimiter", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*gateway.DatabaseResolver, error) {
		var store *config.Store
		if err := c.Resolve(&store); err != nil {
			return nil, err
		}
		return gateway.NewDatabaseResolver(store), nil
	}); err != nil {
		slog.Error("failed to register *gateway.DatabaseResolver", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (*gateway.Handlers, error) {
		var sessions *session.Engine
		if err := c.Resolve(&sessions); err != nil {
			return nil, err
		}
		var wallets *wallet.Service
		if err := c.Resolve(&wallets); err != nil {
			return nil, err
		}
		var bonuses *bonus.Service
		if err := c.Resolve(&bonuses); err != nil {
			return nil, err
		}
		var breaker *gateway.CircuitBreaker
		if err := c.Resolve(&breaker); err != nil {
			return nil, err
		}
		return gateway.NewHandlers(sessions, wallets, bonuses, breaker), nil
	}); err != nil {
		slog.Error("failed to register *gateway.Handlers", "err", err)
		panic(err)
	}

	if err := c.Singleton(func() (http.Handler, error) {
		var issuer *session.TokenIssuer
		if err := c.Resolve(&issuer); err != nil {
			return nil, err
		}
		var handlers *gateway.Handlers
		if err := c.Resolve(&handlers); err != nil {
			return nil, err
		}
		var limiter *gateway.RateLimiter
		if err := c.Resolve(&limiter); err != nil {
			return nil, err
		}
		return gateway.NewRouter(issuer, handlers, limiter), nil
	}); err != nil {
		slog.Error("failed to register http.Handler router", "err", err)
		panic(err)
	}

	return b
}
