package orders

import (
	"strings"
)

// PersonName is a patient name split into its parts.
type PersonName struct {
	LastName   string
	FirstName  string
	MiddleName string
}

// SplitFullName splits free text as "surname given-name patronymic".
// Missing parts stay empty; extra words are kept in the patronymic.
func SplitFullName(full string) PersonName {
	parts := strings.Fields(full)
	var n PersonName
	switch len(parts) {
	case 0:
	case 1:
		n.LastName = parts[0]
	case 2:
		n.LastName, n.FirstName = parts[0], parts[1]
	default:
		n.LastName, n.FirstName = parts[0], parts[1]
		n.MiddleName = strings.Join(parts[2:], " ")
	}
	return n
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
