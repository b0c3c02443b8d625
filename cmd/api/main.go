package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/parleyhq/service-social-go/internal/friend"
	friendrepo "github.com/parleyhq/service-social-go/internal/friend/repo"
	"github.com/parleyhq/service-social-go/internal/relay"
	"github.com/parleyhq/service-social-go/internal/router"
	"github.com/parleyhq/service-social-go/internal/session"
	sessionrepo "github.com/parleyhq/service-social-go/internal/session/repo"
	"github.com/parleyhq/service-social-go/internal/user"
	userrepo "github.com/parleyhq/service-social-go/internal/user/repo"
	"github.com/parleyhq/service-social-go/pkg/database"
	"github.com/parleyhq/service-social-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-social-go")

	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		sugar.Fatal("TOKEN_SECRET is required")
	}

	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	defer sqlxDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// repositories; users table must exist before the tables referencing it
	users := userrepo.NewUserRepo(sqlxDB)
	sessions := sessionrepo.NewSessionRepo(sqlxDB)
	friends := friendrepo.NewFriendRepo(sqlxDB)
	for _, ensure := range []func(context.Context) error{
		users.EnsureTable, sessions.EnsureTable, friends.EnsureTable,
	} {
		if err := ensure(ctx); err != nil {
			sugar.Fatalf("ensure tables: %v", err)
		}
	}

	codec := session.NewTokenCodec([]byte(secret))
	guard := session.NewGuard(codec, sessions)
	userSvc := user.NewService(users, nil, sessions)
	friendSvc := friend.NewService(friends, nil)

	// relay to the realtime gateway; the service runs degraded without it
	gatewayURL := os.Getenv("GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "ws://localhost:8432/relay"
	}
	rly := relay.NewClient(gatewayURL, session.Issuer, guard, friendSvc, sugar)
	friendSvc.SetNotifier(rly)
	if err := rly.Connect(ctx); err != nil {
		sugar.Warnf("relay connect failed, events will be dropped: %v", err)
	}
	defer rly.Disconnect()

	handler := router.RegisterRoutes(sugar,
		guard,
		user.NewHandler(userSvc, guard, sugar),
		session.NewHandler(guard, sugar),
		friend.NewHandler(friendSvc, sugar),
	)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
