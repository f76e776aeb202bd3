// Command api serves the web boundary: mailcommand action links,
// short-URL redirects, and the mailing-list subscribe endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felag/mailengine/internal/api"
	"github.com/felag/mailengine/internal/config"
	"github.com/felag/mailengine/internal/database"
	"github.com/felag/mailengine/internal/mail"
	"github.com/felag/mailengine/internal/repository/postgres"
	"github.com/felag/mailengine/internal/service/interactive"
	"github.com/felag/mailengine/internal/service/tokenlink"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	sender, err := mail.NewSESSender(ctx, cfg.Mail)
	if err != nil {
		log.Fatalf("create mail sender: %v", err)
	}

	linkSvc := tokenlink.NewService(postgres.NewTokenRepo(db), tokenlink.Config{
		BaseURL:    cfg.Links.BaseURL,
		CodeLength: cfg.Links.ShortCodeLength,
		Expiry:     time.Duration(cfg.Links.ExpiryDays) * 24 * time.Hour,
		TokenTTL:   time.Duration(cfg.Links.TokenTTLHours) * time.Hour,
	})
	engine := interactive.NewEngine(postgres.NewInteractiveRepo(db), linkSvc, sender,
		interactive.Config{BaseURL: cfg.Links.BaseURL})

	handlers := api.NewHandlers(engine, linkSvc, postgres.NewSubscriberRepo(db),
		api.Config{DefaultRedirectURL: cfg.Links.DefaultRedirectURL})
	router := api.SetupRoutes(handlers, nil)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("[API] Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[API] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown: %v", err)
	}
}
