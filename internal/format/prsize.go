package format

import "fmt"

// PRSize represents a T-shirt size category for PR changes.
type PRSize string

const (
	PRSizeXS PRSize = "XS"
	PRSizeS  PRSize = "S"
	PRSizeM  PRSize = "M"
	PRSizeL  PRSize = "L"
	PRSizeXL PRSize = "XL"
)

// PRSizeThresholds holds the thresholds for determining PR size.
type PRSizeThresholds struct {
	XS int // <= XS is extra small
	S  int // <= S is small
	M  int // <= M is medium
	L  int // <= L is large
	// > L is extra large
}

// DefaultPRSizeThresholds returns the conventional line-count cutoffs.
func DefaultPRSizeThresholds() PRSizeThresholds {
	return PRSizeThresholds{XS: 10, S: 50, M: 200, L: 500}
}

// SizeOf determines the T-shirt size of a change of the given total line
// count.
func SizeOf(total int, thresholds PRSizeThresholds) PRSize {
	switch {
	case total <= thresholds.XS:
		return PRSizeXS
	case total <= thresholds.S:
		return PRSizeS
	case total <= thresholds.M:
		return PRSizeM
	case total <= thresholds.L:
		return PRSizeL
	default:
		return PRSizeXL
	}
}

// SizeLabel renders a total line count with its T-shirt size, e.g. "120 (M)".
func SizeLabel(total int) string {
	return fmt.Sprintf("%d (%s)", total, SizeOf(total, DefaultPRSizeThresholds()))
}
