package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/internal/seed"
	"github.com/editorhub/editors/pkg/auth"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var randSeed int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the test superuser, managers, communities and projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := seed.New(a.Store, randSeed).Seed(cmd.Context())
			if err != nil {
				if errors.Is(err, seed.ErrAlreadySeeded) {
					return fmt.Errorf("user %q already exists; refusing to seed twice", seed.SuperuserName)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Users", "Communities", "Projects"},
				[][]string{{
					strconv.Itoa(summary.Users),
					strconv.Itoa(summary.Communities),
					strconv.Itoa(summary.Projects),
				}},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s, password %s\n", seed.SuperuserName, seed.DefaultPassword)
			return nil
		},
	}

	cmd.Flags().Int64Var(&randSeed, "rand-seed", 0, "Random seed for generated names (0 uses the clock)")
	return cmd
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			user, err := a.Store.GetUser(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load user %d: %w", id, err)
			}
			if user == nil {
				return fmt.Errorf("user %d not found", id)
			}
			token, err := a.Tokens.Issue(user.ID)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newCreateUserCommand(ctx *commandContext) *cobra.Command {
	var (
		username  string
		email     string
		name      string
		password  string
		superuser bool
	)

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				return errors.New("--password is required")
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			existing, err := a.Store.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("check username: %w", err)
			}
			if existing != nil {
				return fmt.Errorf("user %q already exists", username)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user := &models.User{
				Username:    username,
				Email:       email,
				Name:        name,
				Password:    hash,
				IsSuperuser: superuser,
				IsActive:    true,
			}
			if err := a.Store.CreateUser(cmd.Context(), user); err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Username", "Superuser"},
				[][]string{{strconv.FormatInt(user.ID, 10), user.Username, strconv.FormatBool(user.IsSuperuser)}},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "Grant superuser rights")
	return cmd
}
