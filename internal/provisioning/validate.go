package provisioning

// validate.go enforces per-row field rules and intra-batch email uniqueness.
//
// Role resolution is a closed lookup table: adding an alias is a one-line
// edit to roleAliases, and aliasRoles marks which tokens trigger a
// normalization warning.

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// Go's regexp has no lookahead, so the temp-password rule is checked per
	// character class in validTempPassword.
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// roleAliases maps normalized role tokens to canonical roles. Tokens are
// uppercased with runs of whitespace and hyphens collapsed to single
// underscores before lookup.
var roleAliases = map[string]Role{
	"SUPER_ADMIN": RoleSuperAdmin,
	"SUPERADMIN":  RoleSuperAdmin,
	"ADMIN":       RoleAdmin,
	"CONTRACTOR":  RoleContractor,
	"TEAM_LEAD":   RoleAdmin,
	"TEAMLEAD":    RoleAdmin,
	"READ_ONLY":   RoleAdmin,
	"READONLY":    RoleAdmin,
}

// aliasRoles are the tokens accepted only as legacy aliases. Resolving one
// emits a normalization warning.
var aliasRoles = map[string]bool{
	"TEAM_LEAD": true,
	"TEAMLEAD":  true,
	"READ_ONLY": true,
	"READONLY":  true,
}

var roleTokenSeparators = regexp.MustCompile(`[\s-]+`)

// normalizeRoleToken canonicalizes a raw role value for table lookup.
func normalizeRoleToken(role string) string {
	token := strings.ToUpper(strings.TrimSpace(role))
	token = roleTokenSeparators.ReplaceAllString(token, "_")
	for strings.Contains(token, "__") {
		token = strings.ReplaceAll(token, "__", "_")
	}
	return token
}

// resolveRole maps a raw role value to its canonical role.
// The second return is false when the token resolves to nothing.
func resolveRole(raw string) (Role, bool) {
	role, ok := roleAliases[normalizeRoleToken(raw)]
	return role, ok
}

// ResolveRole maps a raw role value to its canonical role, accepting the same
// tokens and legacy aliases as batch validation. The second return is false
// when the value resolves to nothing.
func ResolveRole(raw string) (Role, bool) {
	return resolveRole(raw)
}

// isAliasRole reports whether the raw role was accepted via a legacy alias
// rather than a canonical token.
func isAliasRole(raw string) bool {
	return aliasRoles[normalizeRoleToken(raw)]
}

// validTempPassword reports whether a temp password is at least 12 characters
// with at least one lowercase letter, uppercase letter, digit, and
// non-alphanumeric character.
func validTempPassword(password string) bool {
	return len(password) >= 12 &&
		lowerPattern.MatchString(password) &&
		upperPattern.MatchString(password) &&
		digitPattern.MatchString(password) &&
		specialPattern.MatchString(password)
}

// ValidateRows checks every parsed row independently and splits the batch
// into valid rows and per-row issues, both in input order.
//
// A row's issue reason concatenates every rule it violated. Duplicate emails
// (case-insensitive) are rejected, keeping the first valid occurrence. Rows
// accepted through a role alias add a non-fatal warning.
func ValidateRows(rows []ParsedRow) ValidationResult {
	result := ValidationResult{}
	seenEmails := make(map[string]bool)

	for _, row := range rows {
		email := strings.ToLower(strings.TrimSpace(row.Email))
		role, roleOK := resolveRole(row.Role)
		var issues []string

		if row.FirstName == "" {
			issues = append(issues, "`first_name` is required.")
		}

		if row.LastName == "" {
			issues = append(issues, "`last_name` is required.")
		}

		if email == "" {
			issues = append(issues, "`email` is required.")
		} else if !emailPattern.MatchString(email) {
			issues = append(issues, "`email` must be a valid email address.")
		}

		if row.TempPassword == "" {
			issues = append(issues, "`temp_password` is required.")
		} else if !validTempPassword(row.TempPassword) {
			issues = append(issues, "`temp_password` must be 12+ chars with uppercase, lowercase, number, and special character.")
		}

		if row.Role == "" {
			issues = append(issues, "`role` is required.")
		} else if !roleOK {
			issues = append(issues, "`role` must resolve to SUPER_ADMIN, ADMIN, or CONTRACTOR.")
		}

		if email != "" && seenEmails[email] {
			issues = append(issues, "Duplicate email in CSV.")
		}

		if len(issues) > 0 || !roleOK || email == "" {
			result.RowIssues = append(result.RowIssues, RowIssue{
				LineNumber: row.LineNumber,
				Email:      email,
				Reason:     strings.Join(issues, " "),
			})
			continue
		}

		if isAliasRole(row.Role) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Line %d: role %q was normalized to %q.", row.LineNumber, row.Role, role))
		}

		seenEmails[email] = true
		result.ValidRows = append(result.ValidRows, ValidatedRow{
			LineNumber:   row.LineNumber,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			Email:        email,
			Role:         role,
			TempPassword: row.TempPassword,
		})
	}

	return result
}
