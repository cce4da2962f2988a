package utils

// Truncate bounds s to maxLen bytes, marking the cut with an ellipsis.
// Used to keep prompt and payload previews to a single terminal line.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
