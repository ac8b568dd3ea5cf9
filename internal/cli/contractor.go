package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stormline/provision/internal/identity"
	"github.com/stormline/provision/internal/provisioning"
	"github.com/stormline/provision/internal/store"
)

// contractorCodePattern accepts codes like DM01: two letters then digits.
var contractorCodePattern = regexp.MustCompile(`^[A-Z]{2}\d+$`)

func newContractorCmd() *cobra.Command {
	var (
		firstName      string
		lastName       string
		email          string
		contractorCode string
		role           string
	)

	cmd := &cobra.Command{
		Use:   "contractor",
		Short: "Upsert a single contractor",
		Long: `Creates or updates one contractor end to end: identity, profile, and the
business record keyed by the contractor code. A new identity gets a generated
temporary password, printed once; an existing identity keeps its password.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			firstName = strings.TrimSpace(firstName)
			lastName = strings.TrimSpace(lastName)
			email = strings.ToLower(strings.TrimSpace(email))
			code := strings.ToUpper(strings.TrimSpace(contractorCode))

			if !contractorCodePattern.MatchString(code) {
				return fmt.Errorf("invalid contractor code %q: expected two letters followed by digits (example: DM01)", contractorCode)
			}
			resolvedRole, ok := provisioning.ResolveRole(role)
			if !ok {
				return fmt.Errorf("role %q must resolve to SUPER_ADMIN, ADMIN, or CONTRACTOR", role)
			}

			ctx := cmd.Context()
			_, be, err := connect(ctx)
			if err != nil {
				return err
			}
			defer be.Close()

			users, err := be.identity.ListUsers(ctx)
			if err != nil {
				return fmt.Errorf("listing identities: %w", err)
			}
			var existing *identity.User
			for i, u := range users {
				if u.Email == email {
					existing = &users[i]
					break
				}
			}

			var (
				profileID    string
				tempPassword string
			)
			if existing == nil {
				tempPassword, err = generateTempPassword()
				if err != nil {
					return fmt.Errorf("generating temp password: %w", err)
				}
				created, err := be.identity.CreateUser(ctx, identity.UserParams{
					Email:          email,
					Password:       tempPassword,
					FirstName:      firstName,
					LastName:       lastName,
					ContractorCode: code,
				})
				if err != nil {
					return fmt.Errorf("creating identity: %w", err)
				}
				profileID = created.ID
			} else {
				// Empty password leaves the stored credential alone.
				err := be.identity.UpdateUser(ctx, existing.ID, identity.UserParams{
					Email:          email,
					FirstName:      firstName,
					LastName:       lastName,
					ContractorCode: code,
				})
				if err != nil {
					return fmt.Errorf("updating identity: %w", err)
				}
				profileID = existing.ID
			}

			err = be.profiles.UpsertProfile(ctx, provisioning.ProfileParams{
				ID:                profileID,
				Email:             email,
				FirstName:         firstName,
				LastName:          lastName,
				Role:              resolvedRole,
				MustResetPassword: existing == nil,
			})
			if err != nil {
				return fmt.Errorf("upserting profile: %w", err)
			}

			err = be.profiles.UpsertContractorWithCode(ctx, code, provisioning.ContractorParams{
				ProfileID: profileID,
				FirstName: firstName,
				LastName:  lastName,
				Email:     email,
			})
			if err != nil {
				return fmt.Errorf("upserting contractor record: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Contractor upsert complete.")
			fmt.Fprintf(out, "Email: %s\n", email)
			fmt.Fprintf(out, "Contractor code: %s\n", code)
			fmt.Fprintf(out, "Contractor UUID: %s\n", store.ContractorCodeUUID(code))
			fmt.Fprintf(out, "Profile ID: %s\n", profileID)
			fmt.Fprintf(out, "Role: %s\n", resolvedRole)
			if tempPassword != "" {
				fmt.Fprintf(out, "Temporary password (rotate on first login): %s\n", tempPassword)
			} else {
				fmt.Fprintln(out, "Identity already existed; password was not changed.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "contractor first name (required)")
	cmd.Flags().StringVar(&lastName, "last-name", "", "contractor last name (required)")
	cmd.Flags().StringVar(&email, "email", "", "contractor email (required)")
	cmd.Flags().StringVar(&contractorCode, "contractor-id", "", "contractor code, two letters then digits (required)")
	cmd.Flags().StringVar(&role, "role", "CONTRACTOR", "profile role")
	cmd.MarkFlagRequired("first-name")
	cmd.MarkFlagRequired("last-name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("contractor-id")

	return cmd
}

// generateTempPassword builds a random one-time credential that satisfies the
// temp-password rules: 12+ characters with upper, lower, digit, and special.
func generateTempPassword() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "Grid!A" + hex.EncodeToString(raw) + "9a", nil
}
