package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeLabel(label string) string {
	label = strings.ToLower(label)
	label = strings.Trim(label, " \n\t")
	label = whitespaceRegex.ReplaceAllString(label, " ")
	return label
}

// reports whether any of the given texts contains one of the matchers
// after label normalization
func MatchAny(texts []string, matchers []string) bool {
	for _, t := range texts {
		t = NormalizeLabel(t)
		for _, m := range matchers {
			if strings.Contains(t, m) {
				return true
			}
		}
	}
	return false
}

func DigitCount(s string) int {
	n := 0
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}

func Digits(s string) string {
	var out strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// the CRM treats the last 10 digits as the significant part of a phone
// number, so "+1 (910) 555-0182" and "9105550182" compare equal
func NormalizePhone(phone string) string {
	digits := Digits(phone)
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
