package wallet

import "fmt"

type WarningCode string

const (
	// WarnRoundingResidual: a proportional split left a sub-precision
	// residual that was folded into the second derived value.
	WarnRoundingResidual WarningCode = "rounding_residual"

	// WarnDataInconsistency: stored figures disagree with recomputed ones
	// (e.g. profit with a zero cost basis).
	WarnDataInconsistency WarningCode = "data_inconsistency"

	// WarnWalletNotUpdated: the event record was saved but the lot change
	// was refused and needs manual reconciliation.
	WarnWalletNotUpdated WarningCode = "wallet_not_updated"
)

// Warning is a non-fatal diagnostic returned alongside a result.
type Warning struct {
	Code    WarningCode
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

func warnf(code WarningCode, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}
