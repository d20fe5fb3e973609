package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"civicvoice/internal/store"

	"github.com/spf13/cobra"
)

type adminRegistry interface {
	GrantAdministrator(ctx context.Context, principalID, note string) error
	RevokeAdministrator(ctx context.Context, principalID string) (bool, error)
	ListAdministrators(ctx context.Context) ([]store.Administrator, error)
}

var grantNote string

func init() {
	grantCmd.Flags().StringVar(&grantNote, "note", "", "free-form note stored with the registration")
	adminsCmd.AddCommand(grantCmd, revokeCmd, listCmd)
}

var adminsCmd = &cobra.Command{
	Use:   "admins",
	Short: "Manage administrator registrations",
	Long: `Administrators are principal ids registered in the administrators table.
Roles are looked up on every request, so changes apply immediately.

Examples:
  civicctl admins grant usr_3f9c2 --note "Roads department lead"
  civicctl admins revoke usr_3f9c2
  civicctl admins list`,
}

var grantCmd = &cobra.Command{
	Use:   "grant <principal-id>",
	Short: "Register a principal as an administrator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(ctx context.Context, registry adminRegistry) error {
			return grantAdmin(ctx, registry, cmd.OutOrStdout(), args[0], grantNote)
		})
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <principal-id>",
	Short: "Remove an administrator registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(ctx context.Context, registry adminRegistry) error {
			return revokeAdmin(ctx, registry, cmd.OutOrStdout(), args[0])
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List administrator registrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRegistry(cmd, func(ctx context.Context, registry adminRegistry) error {
			return listAdmins(ctx, registry, cmd.OutOrStdout())
		})
	},
}

func withRegistry(cmd *cobra.Command, fn func(context.Context, adminRegistry) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	dataStore, db, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, dataStore)
}

func grantAdmin(ctx context.Context, registry adminRegistry, out io.Writer, principalID, note string) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return fmt.Errorf("principal id is required")
	}
	if err := registry.GrantAdministrator(ctx, principalID, strings.TrimSpace(note)); err != nil {
		return err
	}
	fmt.Fprintf(out, "granted administrator to %s\n", principalID)
	return nil
}

func revokeAdmin(ctx context.Context, registry adminRegistry, out io.Writer, principalID string) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return fmt.Errorf("principal id is required")
	}
	removed, err := registry.RevokeAdministrator(ctx, principalID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%s is not an administrator", principalID)
	}
	fmt.Fprintf(out, "revoked administrator from %s\n", principalID)
	return nil
}

func listAdmins(ctx context.Context, registry adminRegistry, out io.Writer) error {
	admins, err := registry.ListAdministrators(ctx)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		fmt.Fprintln(out, "no administrators registered")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRINCIPAL\tSINCE\tNOTE")
	for _, admin := range admins {
		fmt.Fprintf(w, "%s\t%s\t%s\n", admin.PrincipalID, admin.CreatedAt.UTC().Format(time.RFC3339), admin.Note)
	}
	return w.Flush()
}
