package domain

import "errors"

var (
	// ErrLedgerUnavailable is returned when the ledger service cannot be
	// reached or the marketplace contract is not deployed. Views fail as a
	// whole with this error; no partial results are produced.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrSubmissionDeclined is returned when the signer refuses to sign a
	// mutation. This is not a failure: no retry, no alarm.
	ErrSubmissionDeclined = errors.New("submission declined by signer")

	// ErrMutationInFlight is returned when a mutation is submitted while a
	// prior one has not reached finality yet
	ErrMutationInFlight = errors.New("another mutation is pending finality")

	// ErrItemAlreadySold is returned when a purchase targets an item the
	// ledger has already marked sold
	ErrItemAlreadySold = errors.New("item already sold")

	// ErrItemNotFound is returned when an item id is outside the ledger's
	// dense 1..itemCount range
	ErrItemNotFound = errors.New("item not found")

	// ErrOfferNotFound is returned when an offer id is outside 1..offerCount
	ErrOfferNotFound = errors.New("offer not found")

	// ErrMetadataTooLarge is returned when a metadata document exceeds the
	// configured size bound
	ErrMetadataTooLarge = errors.New("metadata document too large")

	// ErrMetadataInvalid is returned when a metadata document is missing a
	// required field or is not valid JSON
	ErrMetadataInvalid = errors.New("metadata document invalid")
)

// ExecutionError carries the ledger-provided revert reason for a mutation
// the ledger rejected during execution
type ExecutionError struct {
	Reason string
}

func (e *ExecutionError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// ValidationError is a client-side rejection raised before a mutation ever
// reaches the ledger
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Detail
}
