package main

import (
	"time"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/config"
	"github.com/bioarchive/api/internal/infra/jobs"
	"github.com/bioarchive/api/internal/infra/redis"
	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/jwt"
	"github.com/bioarchive/api/pkg/logger"
	"github.com/bioarchive/api/pkg/password"
	goredis "github.com/redis/go-redis/v9"
)

const roleCacheTTL = 5 * time.Minute

// Services holds all service instances.
type Services struct {
	Tokens *jwt.Generator

	Resolver   *app.RoleResolver
	Permission *app.PermissionService
	User       *app.UserService
	Role       *app.RoleService
	Group      *app.GroupService
	Library    *app.LibraryService
	History    *app.HistoryService
	Collection *app.CollectionService
}

// NewServices wires the application services over the repositories.
func NewServices(
	cfg *config.Config,
	repos *Repositories,
	redisClient *goredis.Client,
	enqueuer *jobs.Enqueuer,
	m *metrics.Metrics,
	log *logger.Logger,
) *Services {
	agent := security.NewAgent(repos.Permission, repos.Role, repos.Library)

	tokens := jwt.NewGenerator(jwt.TokenConfig{
		Secret:               cfg.Auth.JWTSecret,
		Issuer:               cfg.Auth.JWTIssuer,
		AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
		RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
	})
	hasher := newHasher(cfg)

	roleCache := redis.NewRoleCache(redisClient, roleCacheTTL)
	resolver := app.NewRoleResolver(agent, roleCache, m, log)
	permService := app.NewPermissionService(agent, resolver, repos.Library, m, log)

	return &Services{
		Tokens:     tokens,
		Resolver:   resolver,
		Permission: permService,
		User:       app.NewUserService(repos.User, repos.History, agent, hasher, tokens, cfg.Auth.IsAdminEmail, log),
		Role:       app.NewRoleService(repos.Role, repos.Group, resolver, log),
		Group:      app.NewGroupService(repos.Group, resolver, log),
		Library:    app.NewLibraryService(repos.Library, repos.Dataset, agent, permService, log),
		History:    app.NewHistoryService(repos.History, repos.Dataset, agent, permService, enqueuer, m, log),
		Collection: app.NewCollectionService(repos.Collection, repos.History, repos.Library, permService, enqueuer, m, log),
	}
}

func newHasher(cfg *config.Config) *password.Hasher {
	policy := password.DefaultPolicy()
	policy.MinLength = cfg.Auth.PasswordMinLength
	return password.New(password.WithPolicy(policy))
}
