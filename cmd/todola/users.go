package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"todola/backend/internal/registry"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect and remove account records",
	Long: `Administrative access to the account records kept under users/.

Deleting an account record does not remove the sign-in credential.

Examples:
  todola users list
  todola users list --json
  todola users delete 6f1c...`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List account records",
	RunE:  runUsersList,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <uid>",
	Short: "Delete an account record",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	accounts, err := registry.List(ctx, rt.store)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"users": accounts,
			"count": len(accounts),
		})
	}

	if len(accounts) == 0 {
		fmt.Fprintln(out, registry.MsgNoUsers)
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "UID\tEMAIL")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\n", a.UID, a.Email)
	}
	return w.Flush()
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	uid := args[0]
	if err := registry.Remove(ctx, rt.store, uid); err != nil {
		return fmt.Errorf("failed to delete account %s: %w", uid, err)
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": uid})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %s\n", uid)
	return nil
}
