package convert

import "strings"

const DefaultFilterChain = "highpass=f=80,dynaudnorm"

// ParseFilters splits an ffmpeg filter chain into its ordered filters.
// Commas escaped with a backslash or inside single quotes belong to the
// filter arguments.
func ParseFilters(chain string) []string {
	var (
		filters []string
		current strings.Builder
		quoted  bool
		escaped bool
	)

	flush := func() {
		if filter := strings.TrimSpace(current.String()); filter != "" {
			filters = append(filters, filter)
		}
		current.Reset()
	}

	for _, r := range chain {
		switch {
		case escaped:
			escaped = false
			current.WriteRune(r)
		case r == '\\':
			escaped = true
			current.WriteRune(r)
		case r == '\'':
			quoted = !quoted
			current.WriteRune(r)
		case r == ',' && !quoted:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return filters
}

func JoinFilters(filters []string) string {
	parts := make([]string, 0, len(filters))
	for _, filter := range filters {
		if trimmed := strings.TrimSpace(filter); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ",")
}
