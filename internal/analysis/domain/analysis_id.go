package domain

import (
	"fmt"
	"regexp"
	"time"
)

var analysisIDPattern = regexp.MustCompile(`^(.+)_(\d+)_([0-9a-f]{8})$`)

// FormatAnalysisID builds `<account>_<unix millis>_<8 hex>`. The suffix keeps
// ids distinct when captures share a millisecond.
func FormatAnalysisID(accountID string, at time.Time, suffix uint32) string {
	return fmt.Sprintf("%s_%d_%08x", accountID, at.UnixMilli(), suffix)
}

// AnalysisAccount extracts the account from an analysis id.
func AnalysisAccount(analysisID string) (string, bool) {
	m := analysisIDPattern.FindStringSubmatch(analysisID)
	if m == nil {
		return "", false
	}
	return m[1], true
}
