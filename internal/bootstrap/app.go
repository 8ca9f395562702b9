package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/medbooking/config"
	"github.com/Domenick1991/medbooking/internal/auth"
	"github.com/Domenick1991/medbooking/internal/cache"
	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/Domenick1991/medbooking/internal/gateway"
	"github.com/Domenick1991/medbooking/internal/kafka"
	"github.com/Domenick1991/medbooking/internal/repository"
	"github.com/Domenick1991/medbooking/internal/service/appointments"
	"github.com/Domenick1991/medbooking/internal/service/availability"
	"github.com/Domenick1991/medbooking/internal/service/notify"
	"github.com/Domenick1991/medbooking/internal/service/payments"
	"github.com/Domenick1991/medbooking/internal/service/slots"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
)

const publishRetries = 3

// App holds the wired services and the connections they share.
type App struct {
	Config       *config.Config
	Log          zerolog.Logger
	Tokens       *auth.TokenManager
	Availability *availability.Service
	Slots        *slots.Service
	Appointments *appointments.Service
	Payments     *payments.Service

	pool        *pgxpool.Pool
	cache       *cache.RedisCache
	producer    *kafka.Producer
	gatewayConn *grpc.ClientConn
}

// OpenPool connects to postgres and checks the connection.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (app *App, err error) {
	loc, err := cfg.Scheduling.Location()
	if err != nil {
		return nil, fmt.Errorf("scheduling timezone: %w", err)
	}

	app = &App{Config: cfg, Log: log, Tokens: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var repos repository.Repositories
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store := repository.NewMemoryStore()
		if err := seed(store, cfg.Storage.Seed); err != nil {
			return nil, err
		}
		repos = store.Repositories()
		log.Warn().Msg("using in-memory storage, data is lost on restart")
	default:
		if app.pool, err = OpenPool(ctx, cfg.Database); err != nil {
			return nil, err
		}
		repos = repository.NewPGRepositories(app.pool)
	}

	var dispatcher notify.Dispatcher = notify.LogDispatcher{Log: log}
	if cfg.Kafka.Enabled() {
		app.producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err := app.producer.CheckConnection(ctx); err != nil {
			log.Warn().Err(err).Msg("kafka is unreachable, notifications will be retried per message")
		}
		dispatcher = kafka.NewDispatcher(app.producer, cfg.Kafka.NotificationsTopic, cfg.Kafka.AppointmentEventsTopic, publishRetries)
	}
	emitter := notify.NewEmitter(dispatcher, log)

	gw, conn, err := gateway.NewClient(cfg.Payments.GatewayAddress, cfg.Payments.Timeout(), cfg.Payments.MaxRetries, log)
	if err != nil {
		return nil, err
	}
	app.gatewayConn = conn

	slotOpts := []slots.Option{slots.WithLocation(loc), slots.WithLogger(log)}
	availOpts := []availability.Option{availability.WithLocation(loc), availability.WithLogger(log)}
	apptOpts := []appointments.Option{
		appointments.WithEmitter(emitter),
		appointments.WithCurrency(cfg.Payments.Currency),
		appointments.WithListLimit(cfg.Scheduling.ListLimit),
		appointments.WithLocation(loc),
		appointments.WithLogger(log),
	}
	if cfg.Redis.Enabled() {
		app.cache = cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Scheduling.SlotsCacheTTL)*time.Second)
		slotOpts = append(slotOpts, slots.WithCache(app.cache))
		availOpts = append(availOpts, availability.WithSlotInvalidator(app.cache))
		apptOpts = append(apptOpts,
			appointments.WithSlotLocker(app.cache, time.Duration(cfg.Scheduling.SlotLockTTL)*time.Second),
		)
	}

	app.Slots = slots.NewService(repos.Availability, repos.Appointments, slotOpts...)
	app.Availability = availability.NewService(repos.Availability, repos.Directory, availOpts...)
	app.Appointments = appointments.NewService(repos, apptOpts...)
	app.Payments = payments.NewService(repos, gw,
		payments.WithEmitter(emitter),
		payments.WithReconcileAfter(time.Duration(cfg.Payments.ReconcileAfterMinutes)*time.Minute),
		payments.WithLogger(log),
	)
	app.Appointments.SetRefunder(app.Payments)

	return app, nil
}

// Ready pings the stores the app was wired with.
func (a *App) Ready(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	var errs []error
	if a.gatewayConn != nil {
		errs = append(errs, a.gatewayConn.Close())
	}
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := errors.Join(errs...); err != nil {
		a.Log.Warn().Err(err).Msg("closing dependencies")
	}
}

func seed(store *repository.MemoryStore, cfg config.SeedConfig) error {
	for _, d := range cfg.Doctors {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return fmt.Errorf("seed doctor %q: %w", d.ID, err)
		}
		price := decimal.Zero
		if d.ConsultationPrice != "" {
			if price, err = decimal.NewFromString(d.ConsultationPrice); err != nil {
				return fmt.Errorf("seed doctor %s price: %w", id, err)
			}
		}
		store.AddDoctor(domain.Doctor{ID: id, Name: d.Name, Email: d.Email, Active: !d.Inactive, ConsultationPrice: price})
	}
	for _, p := range cfg.Patients {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return fmt.Errorf("seed patient %q: %w", p.ID, err)
		}
		store.AddPatient(domain.Patient{ID: id, Name: p.Name, Email: p.Email})
	}
	return nil
}
