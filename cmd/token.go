package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Krosnoz/dialogue/internal/pkg/id"
	"github.com/Krosnoz/dialogue/internal/server"
)

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Mint an access token for local development",
	Long: `Mint a JWT signed with auth.jwt_secret for the given user id.
A random user id is generated when none is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	userID := id.New()
	if len(args) == 1 {
		userID = args[0]
	}

	token, err := server.NewJWT(&GetConfig().Auth).GenerateToken(userID)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "user_id: %s\n", userID)
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
