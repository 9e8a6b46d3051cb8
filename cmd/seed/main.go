// Command seed loads development fixtures from a YAML file into the
// database: accounts, roles, groups and libraries with their grants.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/config"
	"github.com/bioarchive/api/internal/infra/postgres"
	"github.com/bioarchive/api/pkg/domain/group"
	"github.com/bioarchive/api/pkg/domain/library"
	"github.com/bioarchive/api/pkg/domain/role"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/jwt"
	"github.com/bioarchive/api/pkg/logger"
	"github.com/bioarchive/api/pkg/password"
)

// Fixtures describes the seed file layout.
type Fixtures struct {
	Users     []UserFixture    `yaml:"users"`
	Roles     []RoleFixture    `yaml:"roles"`
	Groups    []GroupFixture   `yaml:"groups"`
	Libraries []LibraryFixture `yaml:"libraries"`
}

// UserFixture describes one account.
type UserFixture struct {
	Email    string   `yaml:"email"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// RoleFixture describes one non-private role.
type RoleFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
}

// GroupFixture describes a group and its members by email.
type GroupFixture struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
	Roles   []string `yaml:"roles"`
}

// LibraryFixture describes a library, optional sub-folders of the root,
// and the roles granted access to it.
type LibraryFixture struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Synopsis    string   `yaml:"synopsis"`
	Folders     []string `yaml:"folders"`
	AccessRoles []string `yaml:"access_roles"`
}

func main() {
	os.Exit(run())
}

func run() int {
	file := flag.String("file", "fixtures/seed.yaml", "Path to the fixtures file")
	flag.Parse()

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Printf("Error reading fixtures file: %v\n", err)
		return 1
	}
	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		fmt.Printf("Error parsing fixtures file: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		return 1
	}
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		return 1
	}
	defer db.Close()
	fmt.Println("Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s := newSeeder(cfg, db)
	if err := s.apply(ctx, fixtures); err != nil {
		fmt.Printf("Error applying fixtures: %v\n", err)
		return 1
	}

	fmt.Println("\nSeed completed successfully!")
	return 0
}

type seeder struct {
	users     *postgres.UserRepository
	roles     *postgres.RoleRepository
	groups    *postgres.GroupRepository
	libraries *postgres.LibraryRepository
	agent     *security.Agent
	accounts  *app.UserService
}

func newSeeder(cfg *config.Config, db *postgres.DB) *seeder {
	users := postgres.NewUserRepository(db)
	roles := postgres.NewRoleRepository(db)
	perms := postgres.NewPermissionRepository(db)
	libraries := postgres.NewLibraryRepository(db)
	histories := postgres.NewHistoryRepository(db)

	agent := security.NewAgent(perms, roles, libraries)
	policy := password.DefaultPolicy()
	policy.MinLength = cfg.Auth.PasswordMinLength
	hasher := password.New(password.WithPolicy(policy))
	tokens := jwt.NewGenerator(jwt.TokenConfig{
		Secret:               cfg.Auth.JWTSecret,
		Issuer:               cfg.Auth.JWTIssuer,
		AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
		RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
	})

	return &seeder{
		users:     users,
		roles:     roles,
		groups:    postgres.NewGroupRepository(db),
		libraries: libraries,
		agent:     agent,
		accounts:  app.NewUserService(users, histories, agent, hasher, tokens, cfg.Auth.IsAdminEmail, logger.NewNop()),
	}
}

func (s *seeder) apply(ctx context.Context, fixtures Fixtures) error {
	for _, f := range fixtures.Roles {
		if err := s.seedRole(ctx, f); err != nil {
			return fmt.Errorf("role %q: %w", f.Name, err)
		}
	}
	for _, f := range fixtures.Users {
		if err := s.seedUser(ctx, f); err != nil {
			return fmt.Errorf("user %q: %w", f.Email, err)
		}
	}
	for _, f := range fixtures.Groups {
		if err := s.seedGroup(ctx, f); err != nil {
			return fmt.Errorf("group %q: %w", f.Name, err)
		}
	}
	for _, f := range fixtures.Libraries {
		if err := s.seedLibrary(ctx, f); err != nil {
			return fmt.Errorf("library %q: %w", f.Name, err)
		}
	}
	return nil
}

func (s *seeder) seedRole(ctx context.Context, f RoleFixture) error {
	if _, err := s.roles.GetByName(ctx, f.Name); err == nil {
		fmt.Printf("Role %q already exists, skipping\n", f.Name)
		return nil
	}

	roleType := role.Type(f.Type)
	if f.Type == "" {
		roleType = role.TypeAdmin
	}
	r, err := role.New(f.Name, f.Description, roleType)
	if err != nil {
		return err
	}
	if err := s.roles.Create(ctx, r); err != nil {
		return err
	}
	fmt.Printf("Created role %q\n", f.Name)
	return nil
}

func (s *seeder) seedUser(ctx context.Context, f UserFixture) error {
	if _, err := s.users.GetByEmail(ctx, f.Email); err == nil {
		fmt.Printf("User %q already exists, skipping\n", f.Email)
		return nil
	}

	u, err := s.accounts.Register(ctx, f.Email, f.Username, f.Password)
	if err != nil {
		return err
	}
	fmt.Printf("Created user %q\n", f.Email)

	for _, name := range f.Roles {
		r, err := s.roles.GetByName(ctx, name)
		if err != nil {
			return fmt.Errorf("grant role %q: %w", name, err)
		}
		if err := s.roles.AssociateUser(ctx, u.ID(), r.ID()); err != nil {
			return fmt.Errorf("grant role %q: %w", name, err)
		}
	}
	return nil
}

func (s *seeder) seedGroup(ctx context.Context, f GroupFixture) error {
	if _, err := s.groups.GetByName(ctx, f.Name); err == nil {
		fmt.Printf("Group %q already exists, skipping\n", f.Name)
		return nil
	}

	g, err := group.New(f.Name)
	if err != nil {
		return err
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return err
	}
	fmt.Printf("Created group %q\n", f.Name)

	for _, email := range f.Members {
		u, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("add member %q: %w", email, err)
		}
		if err := s.groups.AddMember(ctx, g.ID(), u.ID()); err != nil {
			return fmt.Errorf("add member %q: %w", email, err)
		}
	}
	for _, name := range f.Roles {
		r, err := s.roles.GetByName(ctx, name)
		if err != nil {
			return fmt.Errorf("grant role %q: %w", name, err)
		}
		if err := s.roles.AssociateGroup(ctx, g.ID(), r.ID()); err != nil {
			return fmt.Errorf("grant role %q: %w", name, err)
		}
	}
	return nil
}

func (s *seeder) seedLibrary(ctx context.Context, f LibraryFixture) error {
	l, root, err := library.NewLibrary(f.Name, f.Description, f.Synopsis)
	if err != nil {
		return err
	}
	if err := s.libraries.CreateLibrary(ctx, l, root); err != nil {
		return err
	}
	fmt.Printf("Created library %q\n", f.Name)

	for _, name := range f.Folders {
		folder, err := library.NewFolder(root, name, "")
		if err != nil {
			return err
		}
		if err := s.libraries.CreateFolder(ctx, folder); err != nil {
			return err
		}
	}

	if len(f.AccessRoles) == 0 {
		return nil
	}
	ids := make([]shared.ID, 0, len(f.AccessRoles))
	for _, name := range f.AccessRoles {
		r, err := s.roles.GetByName(ctx, name)
		if err != nil {
			return fmt.Errorf("access role %q: %w", name, err)
		}
		ids = append(ids, r.ID())
	}
	grants := security.Grants{security.LibraryAccess: security.NewRoleSet(ids...)}
	return s.agent.SetAllLibraryPermissions(ctx, security.LibraryRef(l.ID()), grants)
}
