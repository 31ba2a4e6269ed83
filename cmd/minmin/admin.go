package main

import (
	"errors"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/minmin-app/minmin/internal/auth"
)

const (
	emailFlag    = "email"
	passwordFlag = "password"
	nameFlag     = "name"
)

var adminFlags = map[string]cobraflags.Flag{ //nolint:gochecknoglobals // cobra flag registry
	emailFlag: &cobraflags.StringFlag{
		Name:  emailFlag,
		Value: "",
		Usage: "Admin e-mail address (required)",
	},
	passwordFlag: &cobraflags.StringFlag{
		Name:  passwordFlag,
		Value: "",
		Usage: "Admin password, at least 12 characters (required)",
	},
	nameFlag: &cobraflags.StringFlag{
		Name:  nameFlag,
		Value: "",
		Usage: "Admin full name (required)",
	},
}

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage platform administrators",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a verified admin account",
		Long: `Create an admin account. Public registration never creates admins, so the
first one is bootstrapped here.

Example:
  minmin admin create --email ops@minmin.app --password 'correct horse battery' --name "Ops"`,
		Args: cobra.NoArgs,
		RunE: createAdmin,
	}
	cobraflags.RegisterMap(create, adminFlags)

	cmd.AddCommand(create)
	return cmd
}

func createAdmin(cmd *cobra.Command, _ []string) error {
	email := adminFlags[emailFlag].GetString()
	password := adminFlags[passwordFlag].GetString()
	name := adminFlags[nameFlag].GetString()
	if email == "" || password == "" || name == "" {
		return errors.New("--email, --password and --name are required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// CreateAdmin issues no tokens.
	svc := newAuthService(cfg, store, nil)
	user, err := svc.CreateAdmin(ctx, auth.CreateAdminParams{
		Email:    email,
		Password: password,
		FullName: name,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
	return err
}
