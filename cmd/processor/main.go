// Command processor runs one synchronous delivery pass over every
// message flagged ready to send. Intended to run from cron. The exit
// code is zero even when individual messages fail; only process-wide
// failures such as an unreachable database are fatal.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felag/mailengine/internal/config"
	"github.com/felag/mailengine/internal/database"
	"github.com/felag/mailengine/internal/mail"
	"github.com/felag/mailengine/internal/pkg/distlock"
	"github.com/felag/mailengine/internal/repository/postgres"
	"github.com/felag/mailengine/internal/service/bulksend"
	"github.com/felag/mailengine/internal/service/groups"
	"github.com/felag/mailengine/internal/service/ledger"
	"github.com/felag/mailengine/internal/service/recipients"
	"github.com/felag/mailengine/internal/service/tokenlink"
	"github.com/felag/mailengine/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	sender, err := mail.NewSESSender(ctx, cfg.Mail)
	if err != nil {
		log.Fatalf("create mail sender: %v", err)
	}

	messageRepo := postgres.NewMessageRepo(db)
	groupSvc := groups.NewService(postgres.NewGroupRepo(db))
	recipientSvc := recipients.NewService(postgres.NewRecipientRepo(db), groupSvc)
	ledgerSvc := ledger.NewService(postgres.NewDeliveryRepo(db))
	linkSvc := tokenlink.NewService(postgres.NewTokenRepo(db), tokenlink.Config{
		BaseURL:    cfg.Links.BaseURL,
		CodeLength: cfg.Links.ShortCodeLength,
		Expiry:     time.Duration(cfg.Links.ExpiryDays) * 24 * time.Hour,
		TokenTTL:   time.Duration(cfg.Links.TokenTTLHours) * time.Hour,
	})

	lockTTL := time.Duration(cfg.Processor.LockTTLMinutes) * time.Minute
	sendSvc := bulksend.NewService(messageRepo, recipientSvc, ledgerSvc, linkSvc,
		postgres.NewInteractiveRepo(db), sender,
		func(messageID string) distlock.Lock {
			return distlock.ForMessage(rdb, db, messageID, lockTTL)
		},
		bulksend.Config{
			BaseURL:        cfg.Links.BaseURL,
			DefaultFrom:    cfg.Mail.DefaultFrom,
			SubjectPrefix:  cfg.Mail.SubjectPrefix,
			SendsPerSecond: cfg.Processor.SendsPerSecond,
		})

	retention := time.Duration(cfg.Processor.SubscriberRetentionDays) * 24 * time.Hour
	processor := worker.NewProcessor(messageRepo, sendSvc, postgres.NewSubscriberRepo(db), retention)
	if err := processor.RunOnce(ctx); err != nil {
		log.Fatalf("delivery pass aborted: %v", err)
	}
}
