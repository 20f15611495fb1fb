package bootstrap

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/spivanka/spivanka/internal/config"
	"github.com/spivanka/spivanka/internal/infra/blob"
	"github.com/spivanka/spivanka/internal/infra/cache"
	"github.com/spivanka/spivanka/internal/infra/coverart"
	"github.com/spivanka/spivanka/internal/infra/db"
	"github.com/spivanka/spivanka/internal/infra/logger"
	"github.com/spivanka/spivanka/internal/infra/queue"
	"github.com/spivanka/spivanka/internal/infra/suno"
	"github.com/spivanka/spivanka/internal/modules/handler"
	"github.com/spivanka/spivanka/internal/modules/model"
	"github.com/spivanka/spivanka/internal/modules/repo"
	"github.com/spivanka/spivanka/internal/modules/service"
	"github.com/spivanka/spivanka/internal/pkg/poller"
	"github.com/spivanka/spivanka/internal/pkg/stream"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		// [optional] auto migrate
		if cfg.Database.AutoMigrate {
			_ = d.AutoMigrate(
				&model.GenerationTask{},
				&model.Greeting{},
				&model.PromoCode{},
				&model.TextBlock{},
				&model.Setting{},
				&model.Payment{},
			)
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.New(cfg), nil
	})
	do.Provide(inj, func(i *do.Injector) (*cache.SnapshotCache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rdb := do.MustInvoke[*redis.Client](i)
		return cache.NewSnapshotCache(rdb, cfg.Poller.SnapshotTTL), nil
	})

	// RabbitMQ (optional: URL may be empty in small deployments)
	do.Provide(inj, func(i *do.Injector) (*queue.Publisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RabbitMQ.URL == "" {
			return nil, nil
		}
		conn, err := amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		return queue.NewPublisher(conn, cfg.RabbitMQ.Exchange, do.MustInvoke[*zap.Logger](i))
	})

	// S3 archive (optional: bucket may be unset)
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.S3.Bucket == "" {
			return nil, nil
		}
		return blob.NewS3(context.Background(), cfg)
	})

	// provider clients
	do.Provide(inj, func(i *do.Injector) (*suno.Client, error) {
		return suno.NewClient(do.MustInvoke[*config.Config](i), do.MustInvoke[*zap.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*coverart.Client, error) {
		return coverart.NewClient(do.MustInvoke[*config.Config](i), do.MustInvoke[*zap.Logger](i)), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.TaskRepo, error) {
		return repo.NewTaskRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.GreetingRepo, error) {
		return repo.NewGreetingRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.PromoRepo, error) {
		return repo.NewPromoRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.TextBlockRepo, error) {
		return repo.NewTextBlockRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.SettingRepo, error) {
		return repo.NewSettingRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.PaymentRepo, error) {
		return repo.NewPaymentRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// generation core
	do.Provide(inj, func(i *do.Injector) (*stream.Hub, error) {
		return stream.NewHub(), nil
	})
	do.Provide(inj, func(i *do.Injector) (*poller.RateLimiter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return poller.NewRateLimiter(cfg.Poller.MinCallGap), nil
	})
	do.Provide(inj, func(i *do.Injector) (*service.GenerationEffects, error) {
		return service.NewGenerationEffects(
			do.MustInvoke[repo.TaskRepo](i),
			do.MustInvoke[repo.GreetingRepo](i),
			do.MustInvoke[*coverart.Client](i),
			do.MustInvoke[*queue.Publisher](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*poller.Poller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return poller.New(
			do.MustInvoke[*suno.Client](i),
			do.MustInvoke[repo.TaskRepo](i),
			do.MustInvoke[*cache.SnapshotCache](i),
			do.MustInvoke[*poller.RateLimiter](i),
			do.MustInvoke[*stream.Hub](i),
			do.MustInvoke[*service.GenerationEffects](i),
			poller.Options{
				Interval:    cfg.Poller.Interval,
				MaxAttempts: cfg.Poller.MaxAttempts,
			},
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.GenerationService, error) {
		return service.NewGenerationService(
			do.MustInvoke[repo.TaskRepo](i),
			do.MustInvoke[*suno.Client](i),
			do.MustInvoke[*poller.Poller](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.GreetingService, error) {
		return service.NewGreetingService(do.MustInvoke[repo.GreetingRepo](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.AdminService, error) {
		return service.NewAdminService(
			do.MustInvoke[repo.PromoRepo](i),
			do.MustInvoke[repo.TextBlockRepo](i),
			do.MustInvoke[repo.SettingRepo](i),
			do.MustInvoke[repo.PaymentRepo](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.GenerationHandler, error) {
		return handler.NewGenerationHandler(
			do.MustInvoke[service.GenerationService](i),
			do.MustInvoke[*stream.Hub](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.GreetingHandler, error) {
		return handler.NewGreetingHandler(do.MustInvoke[service.GreetingService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.AdminHandler, error) {
		return handler.NewAdminHandler(do.MustInvoke[service.AdminService](i)), nil
	})

	return inj
}
