package main

import (
	"context"
	"fmt"
	"io"

	"github.com/devmarvs/yaade/db"
	"github.com/devmarvs/yaade/migrate"
	"github.com/devmarvs/yaade/store"
	"github.com/spf13/cobra"
)

func migrateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(migrateUpCmd(flags), migrateDownCmd(flags), migratePlanCmd(flags))
	return cmd
}

func migrateUpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), flags, func(st *store.Store) error {
				applied, err := st.Migrator().Up(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
				return nil
			})
		},
	}
}

func migrateDownCmd(flags *globalFlags) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withStore(cmd.Context(), flags, func(st *store.Store) error {
				rolled, err := st.Migrator().Down(cmd.Context(), steps)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", rolled)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func migratePlanCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), flags, func(st *store.Store) error {
				plan, err := st.Migrator().Plan(cmd.Context())
				if err != nil {
					return err
				}
				printPlan(cmd.OutOrStdout(), plan)
				return nil
			})
		},
	}
}

func withStore(ctx context.Context, flags *globalFlags, fn func(*store.Store) error) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN, db.Options{})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	st, err := store.New(conn, cfg.Database.Driver, store.Options{})
	if err != nil {
		return err
	}
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return fn(st)
}

func printPlan(w io.Writer, plan []migrate.PlanEntry) {
	for _, entry := range plan {
		state := "pending"
		if entry.Applied {
			state = "applied"
		}
		fmt.Fprintf(w, "%04d_%s\t%s\n", entry.Version, entry.Name, state)
	}
}
