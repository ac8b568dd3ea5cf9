package provisioning

import "context"

// Role is a canonical provisioning role. The set is closed: every raw role
// token in a CSV must resolve to exactly one of these through the alias table
// in validate.go.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleContractor Role = "CONTRACTOR"
)

// RequiredColumns are the header names every provisioning CSV must carry.
// Matching is case-insensitive after trimming; extra columns are ignored.
var RequiredColumns = []string{
	"first_name",
	"last_name",
	"email",
	"role",
	"temp_password",
}

// ParsedRow is one non-empty data line of the CSV, untouched except for
// per-field whitespace trimming. LineNumber is the 1-based position in the
// original input (the header usually makes the first data row line 2), so
// reports can always point back at the source line.
type ParsedRow struct {
	LineNumber   int
	FirstName    string
	LastName     string
	Email        string
	Role         string
	TempPassword string
}

// ParseResult is the outcome of parsing one CSV document.
// A missing required column fails the whole batch: Rows is empty and Errors
// holds a single message naming the missing columns. Short data lines produce
// a per-line error but do not stop the rest of the file.
type ParseResult struct {
	Rows   []ParsedRow
	Errors []string
}

// ValidatedRow is a row that passed every field rule. Email is lowercased and
// unique (case-insensitively) across the batch; Role is canonical.
type ValidatedRow struct {
	LineNumber   int
	FirstName    string
	LastName     string
	Email        string
	Role         Role
	TempPassword string
}

// RowIssue records why one parsed row was rejected during validation.
// Reason concatenates every rule the row violated.
type RowIssue struct {
	LineNumber int
	Email      string // empty when the email field itself was blank
	Reason     string
}

// ValidationResult is the outcome of validating a parsed batch.
// ValidRows and RowIssues both preserve input order. Warnings holds non-fatal
// notices such as role alias normalizations.
type ValidationResult struct {
	ValidRows []ValidatedRow
	RowIssues []RowIssue
	Warnings  []string
}

// RowStatus is the terminal state of one row that reached the Runner.
type RowStatus string

const (
	StatusCreated RowStatus = "created"
	StatusUpdated RowStatus = "updated"
	StatusFailed  RowStatus = "failed"
)

// RunMode distinguishes preview outcomes from committed ones.
type RunMode string

const (
	ModeDryRun  RunMode = "dry-run"
	ModeApplied RunMode = "applied"
)

// RowOutcome is the permanent record of what happened to one row.
type RowOutcome struct {
	LineNumber int       `json:"lineNumber"`
	Email      string    `json:"email"`
	Status     RowStatus `json:"status"`
	Mode       RunMode   `json:"mode"`
	Reason     string    `json:"reason,omitempty"` // set when Status is failed
}

// RunResult aggregates one Runner invocation. Outcomes preserve input order;
// FailedRows counts runner-stage failures only (validation rejections are the
// caller's to merge, see BuildReport).
type RunResult struct {
	DryRun       bool         `json:"dryRun"`
	CreatedUsers int          `json:"createdUsers"`
	UpdatedUsers int          `json:"updatedUsers"`
	FailedRows   int          `json:"failedRows"`
	Warnings     []string     `json:"warnings"`
	Outcomes     []RowOutcome `json:"outcomes"`
}

// RunOptions configures one Runner invocation.
type RunOptions struct {
	// Apply executes mutating adapter calls. When false the run is a dry run:
	// outcomes and counters are computed but no write ever reaches the stores.
	Apply bool

	// Warnings seeds the result's warning list, letting callers carry
	// validation-stage warnings through to the final report.
	Warnings []string
}

// ExistingSuperAdmin is a read-only snapshot of a super-admin identity that
// was present before the run started.
type ExistingSuperAdmin struct {
	ID    string
	Email string
}

// AuthUser identifies an identity-store user.
type AuthUser struct {
	ID    string
	Email string
}

// AuthUserParams is the payload for creating or updating an identity.
type AuthUserParams struct {
	Email        string
	TempPassword string
	FirstName    string
	LastName     string
}

// ProfileParams is the payload for the idempotent profile upsert, keyed by the
// identity id.
type ProfileParams struct {
	ID                string
	Email             string
	FirstName         string
	LastName          string
	Role              Role
	MustResetPassword bool
}

// ContractorParams is the payload for the idempotent contractor upsert, keyed
// by profile id.
type ContractorParams struct {
	ProfileID string
	FirstName string
	LastName  string
	Email     string
}

// Adapter is the only I/O boundary of the reconciler. Implementations talk to
// the identity store and the profile/role store; the Runner is fully testable
// against an in-memory fake. FindAuthUserByEmail returns (nil, nil) when no
// identity exists for the email. UpsertProfile and UpsertContractor must be
// idempotent on their keys.
type Adapter interface {
	ListSuperAdmins(ctx context.Context) ([]ExistingSuperAdmin, error)
	FindAuthUserByEmail(ctx context.Context, email string) (*AuthUser, error)
	CreateAuthUser(ctx context.Context, params AuthUserParams) (AuthUser, error)
	UpdateAuthUser(ctx context.Context, id string, params AuthUserParams) error
	UpsertProfile(ctx context.Context, params ProfileParams) error
	UpsertContractor(ctx context.Context, params ContractorParams) error
}
