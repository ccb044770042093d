package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bustix/internal/cache"
	"bustix/internal/clock"
	intconfig "bustix/internal/config"
	intdb "bustix/internal/db"
	"bustix/internal/domain"
	"bustix/internal/gateway"
	api "bustix/internal/http"
	h "bustix/internal/http/handlers"
	"bustix/internal/http/middleware"
	"bustix/internal/logger"
	"bustix/internal/notify"
	"bustix/internal/repositories"
	"bustix/internal/repositories/memstore"
	"bustix/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app is the wiring shared by serve and worker.
type app struct {
	env     intconfig.Env
	db      *sql.DB
	store   repositories.Store
	deps    services.Deps
	nats    *notify.NATSClient
	outbox  *notify.Outbox
	closers []func()
}

func loadApp(ctx context.Context, clientSuffix string) (*app, error) {
	env := intconfig.LoadEnv()
	logger.Init(env.LogLevel, env.LogFormat)
	if err := env.Validate(); err != nil {
		return nil, err
	}
	loc, err := env.Location()
	if err != nil {
		return nil, err
	}

	a := &app{env: env}
	switch env.StoreDriver {
	case "memory":
		logger.Get().Warn("using in-memory store; data is lost on exit")
		a.store = memstore.New()
	default:
		conn, err := intconfig.OpenDB(ctx, env.DB)
		if err != nil {
			return nil, err
		}
		a.db = conn
		a.store = repositories.NewSQLStore(conn)
		a.closers = append(a.closers, func() { _ = conn.Close() })
	}

	var seats services.SeatCache
	if env.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     env.Redis.Addr,
			Password: env.Redis.Password,
			DB:       env.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Get().Warn("redis unavailable, seat map cache disabled", "addr", env.Redis.Addr, "error", err)
			_ = client.Close()
		} else {
			seats = cache.NewSeatMapCache(client, env.Redis.SeatMapTTL)
			a.closers = append(a.closers, func() { _ = client.Close() })
		}
	}

	var pub notify.Publisher = notify.LogPublisher{}
	if env.NATS.URL != "" {
		nc, err := notify.NewNATSClient(notify.NATSConfig{
			URL:       env.NATS.URL,
			ClusterID: env.NATS.ClusterID,
			ClientID:  env.NATS.ClientID + clientSuffix,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.nats = nc
		pub = nc
		a.closers = append(a.closers, func() { _ = nc.Close() })
	}
	a.outbox = notify.NewOutbox(pub, env.OutboxBuffer)
	a.outbox.Start()

	a.deps = services.Deps{
		Store:     a.store,
		Clock:     clock.Real(),
		Notifier:  a.outbox,
		SeatCache: seats,
		Location:  loc,
		Timeout:   env.OpTimeout,
	}
	return a, nil
}

// close drains the outbox and then releases connections in reverse order.
func (a *app) close() {
	if a.outbox != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.outbox.Close(ctx); err != nil {
			logger.Get().Warn("outbox not drained", "error", err)
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) handler() h.Handler {
	gw := gateway.PayHere{
		MerchantID:     a.env.Gateway.MerchantID,
		MerchantSecret: a.env.Gateway.MerchantSecret,
		Currency:       a.env.Gateway.Currency,
		CheckoutURL:    a.env.Gateway.CheckoutURL,
		ReturnURL:      a.env.Gateway.ReturnURL,
		CancelURL:      a.env.Gateway.CancelURL,
		NotifyURL:      a.env.Gateway.NotifyURL,
	}
	return h.Handler{
		Bookings:      services.BookingService{Deps: a.deps, Currency: a.env.Gateway.Currency},
		Reservations:  services.ReservationService{Deps: a.deps, ReferencePrefix: a.env.ReferencePrefix},
		Payments:      services.PaymentService{Deps: a.deps, Gateway: gw},
		Cancellations: services.CancellationService{Deps: a.deps, Policy: services.DefaultRefundPolicy},
		Verifications: services.VerificationService{Deps: a.deps},
	}
}

func (a *app) expiry() services.ExpiryService {
	return services.ExpiryService{Deps: a.deps, PendingTTL: a.env.PendingTTL}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	var withExpiry bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := loadApp(ctx, "-api")
			if err != nil {
				return err
			}
			defer a.close()

			if a.env.GinMode != "" {
				gin.SetMode(a.env.GinMode)
			}
			if a.env.StoreDriver == "memory" || withExpiry {
				go a.expiry().Run(ctx, a.env.ExpiryInterval)
			}

			srv := &http.Server{
				Addr:              a.env.AppAddr,
				Handler:           api.NewRouter(a.env, a.handler(), a.db),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       20 * time.Second,
				WriteTimeout:      20 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Get().Info("http server listening", "addr", a.env.AppAddr, "store", a.env.StoreDriver)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
			}

			logger.Get().Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Get().Info("http server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withExpiry, "with-expiry", false, "also run the pending booking expiry job in this process")
	return cmd
}

func workerCmd() *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the pending booking expiry job and the notification consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := loadApp(ctx, "-worker")
			if err != nil {
				return err
			}
			defer a.close()

			if a.nats != nil {
				var deliverer notify.LogDeliverer
				for _, subject := range notify.Subjects {
					sub, err := a.nats.SubscribeQueue(subject, queue, deliverer.Deliver)
					if err != nil {
						return err
					}
					defer func() { _ = sub.Close() }()
				}
			} else {
				logger.Get().Warn("NATS_URL not set, notification consumer disabled")
			}

			a.expiry().Run(ctx, a.env.ExpiryInterval)
			return nil
		},
	}
	cmd.Flags().StringVar(&queue, "queue", "notification-workers", "NATS queue group")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the MySQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := intconfig.LoadEnv()
			logger.Init(env.LogLevel, env.LogFormat)

			conn, err := intconfig.OpenDB(cmd.Context(), env.DB)
			if err != nil {
				return err
			}
			defer conn.Close()
			return intdb.RunMigrations(cmd.Context(), conn)
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := intconfig.LoadEnv()
			if env.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if userID <= 0 {
				return errors.New("--user must be positive")
			}
			tok, err := middleware.IssueToken([]byte(env.JWTSecret), domain.Actor{
				ID:   domain.ID(userID),
				Role: domain.ParseRole(role),
			}, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&role, "role", string(domain.RolePassenger), "passenger, conductor or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
