package addressparse

import (
	"regexp"
	"strings"
)

type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// common orderings of US single-line addresses, a 2-letter state code
// followed by a 5 or 9 digit zip
var patterns = []*regexp.Regexp{
	// "123 Main St, City, ST 12345"
	regexp.MustCompile(`^(.+?),\s*(.+?),\s*([A-Za-z]{2})\s*(\d{5}(?:-\d{4})?)$`),
	// "123 Main St City, ST 12345"
	regexp.MustCompile(`^(.+?)\s+(.+?),\s*([A-Za-z]{2})\s*(\d{5}(?:-\d{4})?)$`),
	// "123 Main St, City ST 12345"
	regexp.MustCompile(`^(.+?),\s*(.+?)\s+([A-Za-z]{2})\s*(\d{5}(?:-\d{4})?)$`),
}

var zipRegex = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
var stateRegex = regexp.MustCompile(`^[A-Za-z]{2}$`)

// Parse splits a free-text address line into its parts. The first
// matching pattern wins. When no pattern matches it falls back to
// comma splitting and returns whatever parts it could identify,
// partial output is preferred over failure since a dedicated state
// field on the page overrides the parsed state anyway.
func Parse(address string) (Address, bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Address{}, false
	}

	for _, pattern := range patterns {
		match := pattern.FindStringSubmatch(address)
		if match != nil {
			return Address{
				Street: strings.TrimSpace(match[1]),
				City:   strings.TrimSpace(match[2]),
				State:  strings.ToUpper(strings.TrimSpace(match[3])),
				Zip:    strings.TrimSpace(match[4]),
			}, true
		}
	}

	parts := strings.Split(address, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	if len(parts) < 3 {
		return Address{}, false
	}

	out := Address{
		Street: parts[0],
		City:   parts[1],
	}
	tokens := strings.Fields(parts[2])
	switch {
	case len(tokens) >= 2:
		out.State = strings.ToUpper(tokens[0])
		out.Zip = tokens[1]
	case len(tokens) == 1 && zipRegex.MatchString(tokens[0]):
		out.Zip = tokens[0]
	case len(tokens) == 1 && stateRegex.MatchString(tokens[0]):
		out.State = strings.ToUpper(tokens[0])
	}
	// anything more ambiguous stays street+city only
	return out, true
}
