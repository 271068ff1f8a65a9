package carectl

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	careserver "github.com/Apurer/temporary-care-api/go"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var subject, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := ctx.jwtSecret()
			if strings.TrimSpace(secret) == "" {
				return fmt.Errorf("no signing secret: pass --jwt-secret or set JWT_SECRET")
			}
			parsed, ok := identity.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			if strings.TrimSpace(subject) == "" {
				return fmt.Errorf("--sub is required")
			}
			token, err := careserver.NewAuthenticator(secret).Sign(identity.Actor{ID: strings.TrimSpace(subject), Role: parsed}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "Subject (user id) of the token")
	cmd.Flags().StringVar(&role, "role", string(identity.RoleOwner), "Role claim: owner, staff or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
