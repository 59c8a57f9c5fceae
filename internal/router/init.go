package router

import (
	"github.com/oksasatya/course-identity/internal/application"
	"github.com/oksasatya/course-identity/internal/container"
	pginfra "github.com/oksasatya/course-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/course-identity/internal/infrastructure/mailqueue"
	handlers "github.com/oksasatya/course-identity/internal/interface/http"
	"github.com/oksasatya/course-identity/internal/router/modules"
)

type Deps struct {
	Users   *application.Service
	Invites *application.InviteService
	Auth    *handlers.AuthHandler
	User    *handlers.UserHandler
	Invite  *handlers.InviteHandler
}

func buildDeps() Deps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	pool := container.GetPGPool()

	users := pginfra.NewUserRepository(pool)
	invites := pginfra.NewInviteRepository(pool)

	svc := application.NewService(users, container.GetVault(), container.GetVerifier(), container.GetJWT(), logger)
	svc.GCS = container.GetGCS()
	svc.GCSBucket = cfg.GCSBucket
	svc.Redis = container.GetRedis()
	svc.ES = container.GetES()
	svc.ESUsersIndex = cfg.ESUsersIndex

	// Leave the interface nil when RabbitMQ is down so the sender reports it.
	var pub mailqueue.Publisher
	if p := container.GetRabbitPub(); p != nil {
		pub = p
	}
	inviteSvc := application.NewInviteService(
		invites,
		users,
		pginfra.NewTxManager(pool),
		container.GetVault(),
		mailqueue.NewInviteSender(pub, cfg, logger),
		logger,
	)
	inviteSvc.TTL = cfg.InviteTTL
	inviteSvc.DedupeWindow = cfg.InviteDedupeWindow
	inviteSvc.Directory = svc

	return Deps{
		Users:   svc,
		Invites: inviteSvc,
		Auth:    handlers.NewAuthHandler(svc, logger, cfg.CookieDomain, cfg.CookieSecure),
		User:    handlers.NewUserHandler(svc, logger),
		Invite:  handlers.NewInviteHandler(inviteSvc, svc, logger),
	}
}

// InitModules builds every module from the container and adds it to the registry.
// Call once during startup, after the container is populated.
func InitModules(r *Registry) {
	d := buildDeps()
	jwt := container.GetJWT()
	rdb := container.GetRedis()

	r.Add(modules.NewHealthModule(container.GetPGPool(), rdb, container.GetVerifier()))
	r.Add(modules.NewAuthModule(d.Auth, rdb, jwt))
	r.Add(modules.NewUserModule(d.User, rdb, jwt))
	r.Add(modules.NewInviteModule(d.Invite, rdb, jwt))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(rdb))
	}
}
