// Package provisioning implements the CSV-driven onboarding reconciler.
//
// A batch moves through three stages: ParseCSV turns raw text into rows with
// stable line numbers, ValidateRows enforces field rules and intra-batch
// uniqueness, and Run reconciles the surviving rows against the identity and
// profile stores through the Adapter interface. Parsing and validation are
// pure; only the Runner performs I/O, and only through the Adapter.
//
// The package has no UI or transport dependencies and is exercised by both
// the CLI and the HTTP upload endpoint.
package provisioning
