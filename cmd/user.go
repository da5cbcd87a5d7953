package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage server owners",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var userCreateFlags struct {
	email      string
	externalID string
	admin      bool
}

var userShowCmd = &cobra.Command{
	Use:   "show [user]",
	Short: "Show a user by id, username, or --external-id",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUserShow,
}

var userShowExternalID string

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	userCreateCmd.Flags().StringVar(&userCreateFlags.email, "email", "", "Email address (required)")
	userCreateCmd.Flags().StringVar(&userCreateFlags.externalID, "external-id", "", "Identifier in an external system")
	userCreateCmd.Flags().BoolVar(&userCreateFlags.admin, "admin", false, "Grant root admin")
	_ = userCreateCmd.MarkFlagRequired("email")

	userShowCmd.Flags().StringVar(&userShowExternalID, "external-id", "", "Look the user up by external id")

	userCmd.AddCommand(userCreateCmd, userShowCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	u := &model.User{
		Username:   args[0],
		Email:      userCreateFlags.email,
		ExternalID: userCreateFlags.externalID,
		RootAdmin:  userCreateFlags.admin,
	}
	err := db().WithTx(ctx, func(q *store.Queries) error {
		return q.CreateUser(ctx, u)
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return errors.Conflict(fmt.Sprintf("user %q or its email or external id already exists", u.Username))
		}
		return err
	}

	logSuccess("User %s created (id %d)", u.Username, u.ID)
	return nil
}

func runUserShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var u *model.User
	var err error
	switch {
	case userShowExternalID != "":
		u, err = db().GetUserByExternalID(ctx, userShowExternalID)
	case len(args) == 1:
		u, err = loadUser(ctx, args[0])
	default:
		return errors.New(errors.KindValidation, "give a user or --external-id")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User:        %s (id %d)\n", u.Username, u.ID)
	fmt.Fprintf(out, "UUID:        %s\n", u.UUID)
	fmt.Fprintf(out, "Email:       %s\n", u.Email)
	if u.ExternalID != "" {
		fmt.Fprintf(out, "External ID: %s\n", u.ExternalID)
	}
	fmt.Fprintf(out, "Root admin:  %t\n", u.RootAdmin)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	users, err := db().ListUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		logInfo("No users found. Create one with: hearth-ctl user create <username> --email <email>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tEXTERNAL ID\tADMIN")
	fmt.Fprintln(w, "--\t--------\t-----\t-----------\t-----")
	for _, u := range users {
		ext := u.ExternalID
		if ext == "" {
			ext = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Email, ext, u.RootAdmin)
	}
	return w.Flush()
}
