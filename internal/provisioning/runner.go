package provisioning

// runner.go is the reconciliation core: it walks validated rows in input
// order and makes the external stores match them through the Adapter.
//
// Execution is deliberately single-threaded. The super-admin singleton policy
// is a check-then-act sequence against an external store; fanning rows out
// concurrently would reintroduce the race the policy exists to prevent, and
// outcomes must preserve input order for auditable reporting.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const secondSuperAdminReason = "Second SUPER_ADMIN creation attempt blocked by policy."

// Run reconciles validated rows against the external stores.
//
// At most one super-admin identity may be created or kept active per run,
// relative to whatever super admin already existed when the run started. A
// row that would introduce a second one is failed without touching the
// adapter. Every other adapter failure is caught at the row boundary and
// recorded; the batch always runs to completion.
//
// When opts.Apply is false no mutating adapter method is called: outcomes and
// counters reflect what would happen, which is how operators preview a batch.
//
// The returned error is non-nil only when the initial super-admin snapshot
// cannot be read; no row has been processed at that point.
func Run(ctx context.Context, rows []ValidatedRow, adapter Adapter, opts RunOptions) (RunResult, error) {
	result := RunResult{
		DryRun:   !opts.Apply,
		Warnings: append([]string{}, opts.Warnings...),
	}

	existing, err := adapter.ListSuperAdmins(ctx)
	if err != nil {
		return result, fmt.Errorf("listing existing super admins: %w", err)
	}
	if len(existing) > 1 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Security warning: %d SUPER_ADMIN profiles already exist before provisioning.", len(existing)))
	}

	var activeSuperAdminEmail string
	if len(existing) > 0 {
		activeSuperAdminEmail = strings.ToLower(existing[0].Email)
	}

	slog.Debug("provisioning run started",
		"rows", len(rows),
		"apply", opts.Apply,
		"existing_super_admins", len(existing),
	)

	mode := ModeDryRun
	if opts.Apply {
		mode = ModeApplied
	}

	for _, row := range rows {
		if row.Role == RoleSuperAdmin && activeSuperAdminEmail != "" && activeSuperAdminEmail != row.Email {
			result.FailedRows++
			result.Outcomes = append(result.Outcomes, RowOutcome{
				LineNumber: row.LineNumber,
				Email:      row.Email,
				Status:     StatusFailed,
				Mode:       mode,
				Reason:     secondSuperAdminReason,
			})
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Line %d: %s", row.LineNumber, secondSuperAdminReason))
			continue
		}

		if activeSuperAdminEmail == "" && row.Role == RoleSuperAdmin {
			activeSuperAdminEmail = row.Email
		}

		outcome, err := reconcileRow(ctx, row, adapter, opts.Apply)
		if err != nil {
			result.FailedRows++
			result.Outcomes = append(result.Outcomes, RowOutcome{
				LineNumber: row.LineNumber,
				Email:      row.Email,
				Status:     StatusFailed,
				Mode:       mode,
				Reason:     err.Error(),
			})
			continue
		}

		switch outcome.Status {
		case StatusCreated:
			result.CreatedUsers++
		case StatusUpdated:
			result.UpdatedUsers++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}

// reconcileRow performs the lookup and, in apply mode, the writes for one
// row. Any error leaves the row entirely unapplied from the Runner's point of
// view: the caller records it as failed and moves on.
func reconcileRow(ctx context.Context, row ValidatedRow, adapter Adapter, apply bool) (RowOutcome, error) {
	existingUser, err := adapter.FindAuthUserByEmail(ctx, row.Email)
	if err != nil {
		return RowOutcome{}, err
	}

	status := StatusCreated
	if existingUser != nil {
		status = StatusUpdated
	}

	if !apply {
		return RowOutcome{
			LineNumber: row.LineNumber,
			Email:      row.Email,
			Status:     status,
			Mode:       ModeDryRun,
		}, nil
	}

	params := AuthUserParams{
		Email:        row.Email,
		TempPassword: row.TempPassword,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
	}

	var userID string
	if existingUser != nil {
		if err := adapter.UpdateAuthUser(ctx, existingUser.ID, params); err != nil {
			return RowOutcome{}, err
		}
		userID = existingUser.ID
	} else {
		created, err := adapter.CreateAuthUser(ctx, params)
		if err != nil {
			return RowOutcome{}, err
		}
		userID = created.ID
	}

	if userID == "" {
		return RowOutcome{}, fmt.Errorf("auth user id was not resolved for %s", row.Email)
	}

	if err := adapter.UpsertProfile(ctx, ProfileParams{
		ID:                userID,
		Email:             row.Email,
		FirstName:         row.FirstName,
		LastName:          row.LastName,
		Role:              row.Role,
		MustResetPassword: true,
	}); err != nil {
		return RowOutcome{}, err
	}

	if row.Role == RoleContractor {
		if err := adapter.UpsertContractor(ctx, ContractorParams{
			ProfileID: userID,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Email:     row.Email,
		}); err != nil {
			return RowOutcome{}, err
		}
	}

	return RowOutcome{
		LineNumber: row.LineNumber,
		Email:      row.Email,
		Status:     status,
		Mode:       ModeApplied,
	}, nil
}
