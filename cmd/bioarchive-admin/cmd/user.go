package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bioarchive/api/internal/app"
	"github.com/bioarchive/api/internal/config"
	"github.com/bioarchive/api/internal/infra/postgres"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/jwt"
	"github.com/bioarchive/api/pkg/password"
)

var (
	flagUserEmail    string
	flagUserName     string
	flagUserPassword string
)

func init() {
	createUserCmd.Flags().StringVar(&flagUserEmail, "email", "", "Account email (required)")
	createUserCmd.Flags().StringVar(&flagUserName, "username", "", "Public username (required)")
	createUserCmd.Flags().StringVar(&flagUserPassword, "password", "", "Initial password (required)")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("password")
}

// userService assembles the account service with its full dependency
// set so CLI-created accounts get the same private role and default
// permission seeding as API registrations.
func userService(cfg *config.Config, db *postgres.DB) *app.UserService {
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

	return app.NewUserService(users, histories, agent, hasher, tokens, cfg.Auth.IsAdminEmail, quietLogger())
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an account with its private role and initial history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		u, err := userService(cfg, db).Register(cmd.Context(), flagUserEmail, flagUserName, flagUserPassword)
		if err != nil {
			return err
		}

		fmt.Printf("Created user %s\n", u.ID().String())
		fmt.Printf("  Email:    %s\n", u.Email())
		fmt.Printf("  Username: %s\n", u.Username())
		if cfg.Auth.IsAdminEmail(u.Email()) {
			fmt.Println("  Admin:    yes (listed in AUTH_ADMIN_EMAILS)")
		}
		return nil
	},
}

var listUsersCmd = &cobra.Command{
	Use:   "list-users",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		filter := user.DefaultListFilter()
		filter.Limit = 200
		users, err := postgres.NewUserRepository(db).List(cmd.Context(), filter)
		if err != nil {
			return err
		}

		fmt.Printf("%-36s  %-30s  %-20s  %s\n", "ID", "EMAIL", "USERNAME", "ACTIVE")
		for _, u := range users {
			fmt.Printf("%-36s  %-30s  %-20s  %t\n", u.ID().String(), u.Email(), u.Username(), u.IsActive())
		}
		return nil
	},
}
