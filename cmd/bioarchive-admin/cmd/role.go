package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bioarchive/api/internal/infra/postgres"
	"github.com/bioarchive/api/pkg/domain/role"
)

var (
	flagRoleName        string
	flagRoleDescription string
	flagRoleType        string
	flagGrantEmail      string
	flagGrantRole       string
)

func init() {
	createRoleCmd.Flags().StringVar(&flagRoleName, "name", "", "Role name (required)")
	createRoleCmd.Flags().StringVar(&flagRoleDescription, "description", "", "Role description")
	createRoleCmd.Flags().StringVar(&flagRoleType, "type", string(role.TypeAdmin), "Role type: admin, system, user or sharing")
	_ = createRoleCmd.MarkFlagRequired("name")

	for _, c := range []*cobra.Command{grantRoleCmd, revokeRoleCmd} {
		c.Flags().StringVar(&flagGrantEmail, "email", "", "Account email (required)")
		c.Flags().StringVar(&flagGrantRole, "role", "", "Role name (required)")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("role")
	}
}

var createRoleCmd = &cobra.Command{
	Use:   "create-role",
	Short: "Create a role",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		roleType := role.Type(flagRoleType)
		if !roleType.IsValid() || roleType == role.TypePrivate {
			return fmt.Errorf("invalid role type %q", flagRoleType)
		}

		r, err := role.New(flagRoleName, flagRoleDescription, roleType)
		if err != nil {
			return err
		}
		if err := postgres.NewRoleRepository(db).Create(cmd.Context(), r); err != nil {
			return err
		}

		fmt.Printf("Created role %s\n", r.ID().String())
		fmt.Printf("  Name: %s\n", r.Name())
		fmt.Printf("  Type: %s\n", r.RoleType().String())
		return nil
	},
}

var listRolesCmd = &cobra.Command{
	Use:   "list-roles",
	Short: "List roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		filter := role.DefaultListFilter()
		filter.Limit = 200
		roles, err := postgres.NewRoleRepository(db).List(cmd.Context(), filter)
		if err != nil {
			return err
		}

		fmt.Printf("%-36s  %-30s  %s\n", "ID", "NAME", "TYPE")
		for _, r := range roles {
			fmt.Printf("%-36s  %-30s  %s\n", r.ID().String(), r.Name(), r.RoleType().String())
		}
		return nil
	},
}

var grantRoleCmd = &cobra.Command{
	Use:   "grant-role",
	Short: "Associate a role with an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		u, err := postgres.NewUserRepository(db).GetByEmail(cmd.Context(), flagGrantEmail)
		if err != nil {
			return err
		}
		roles := postgres.NewRoleRepository(db)
		r, err := roles.GetByName(cmd.Context(), flagGrantRole)
		if err != nil {
			return err
		}
		if err := roles.AssociateUser(cmd.Context(), u.ID(), r.ID()); err != nil {
			return err
		}

		fmt.Printf("Granted role %q to %s\n", r.Name(), u.Email())
		return nil
	},
}

var revokeRoleCmd = &cobra.Command{
	Use:   "revoke-role",
	Short: "Remove a role association from an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		u, err := postgres.NewUserRepository(db).GetByEmail(cmd.Context(), flagGrantEmail)
		if err != nil {
			return err
		}
		roles := postgres.NewRoleRepository(db)
		r, err := roles.GetByName(cmd.Context(), flagGrantRole)
		if err != nil {
			return err
		}
		if err := roles.DissociateUser(cmd.Context(), u.ID(), r.ID()); err != nil {
			return err
		}

		fmt.Printf("Revoked role %q from %s\n", r.Name(), u.Email())
		return nil
	},
}
