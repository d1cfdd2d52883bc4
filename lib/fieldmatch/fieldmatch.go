// Package fieldmatch maps form fields from third-party contact pages
// to canonical contact attributes. The pages it targets label their
// fields inconsistently, so classification is a fixed priority chain
// of case-insensitive substring checks over the element's label, name
// and id. First match wins, a later rule never reclassifies an
// element already claimed by an earlier one.
package fieldmatch

import (
	"regexp"
	"strings"

	"contactbridge/lib/addressparse"
	"contactbridge/lib/contact"
	"contactbridge/lib/textutil"
)

// ElementAttributes is the text-level view of a page element. It is
// deliberately renderer-agnostic so the matcher can run against
// synthetic fixtures as well as parsed documents.
type ElementAttributes struct {
	Label       string
	Name        string
	ID          string
	Placeholder string
	Value       string
	Type        string
	// -1 when the element carries no maxlength attribute
	MaxLength int
}

func (a ElementAttributes) matchTexts() []string {
	return []string{a.Label, a.Name, a.ID}
}

type Field int

const (
	FieldNone Field = iota
	FieldFirstName
	FieldLastName
	FieldFullName
	FieldEmail
	FieldPhone
	FieldDOB
	FieldAddress
	FieldCity
	FieldState
	FieldZip
)

var (
	firstNameMatchers = []string{"first name", "firstname"}
	lastNameMatchers  = []string{"last name", "lastname"}
	nameMatchers      = []string{"name"}
	emailMatchers     = []string{"email"}
	phoneMatchers     = []string{"phone"}
	dobMatchers       = []string{"birth", "dob"}
	addressMatchers   = []string{"address"}
	cityMatchers      = []string{"city"}
	stateMatchers     = []string{"state"}
	zipMatchers       = []string{"zip", "postal"}
)

var dobTextRegex = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

type Match struct {
	Field Field
	Value string
}

// Classify decides which canonical field a single element populates,
// assuming no contact fields were accumulated yet. Elements matching
// the bare "name" rule come back as FieldFullName.
func Classify(attrs ElementAttributes) (Match, bool) {
	return classify(attrs, false)
}

// when a first or last name is already known the full-name fallback is
// disabled and the element keeps falling through the chain, so e.g. a
// "username" field holding an address-like value can still classify as
// email
func classify(attrs ElementAttributes, nameTaken bool) (Match, bool) {
	value := strings.TrimSpace(attrs.Value)
	if value == "" {
		return Match{}, false
	}
	texts := attrs.matchTexts()

	switch {
	case textutil.MatchAny(texts, firstNameMatchers):
		return Match{Field: FieldFirstName, Value: firstToken(value)}, true
	case textutil.MatchAny(texts, lastNameMatchers):
		return Match{Field: FieldLastName, Value: value}, true
	case !nameTaken && textutil.MatchAny(texts, nameMatchers):
		return Match{Field: FieldFullName, Value: value}, true
	case textutil.MatchAny(texts, emailMatchers) && strings.Contains(value, "@"):
		return Match{Field: FieldEmail, Value: value}, true
	case textutil.MatchAny(texts, phoneMatchers) && textutil.DigitCount(value) >= 10:
		return Match{Field: FieldPhone, Value: value}, true
	case textutil.MatchAny(texts, dobMatchers):
		return Match{Field: FieldDOB, Value: value}, true
	case textutil.MatchAny(texts, addressMatchers):
		return Match{Field: FieldAddress, Value: value}, true
	case textutil.MatchAny(texts, cityMatchers):
		return Match{Field: FieldCity, Value: value}, true
	case textutil.MatchAny(texts, stateMatchers):
		return Match{Field: FieldState, Value: value}, true
	case textutil.MatchAny(texts, zipMatchers):
		return Match{Field: FieldZip, Value: value}, true
	}
	return Match{}, false
}

func firstToken(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Accumulator folds classified elements into a contact record while
// enforcing cross-element precedence: explicit first/last name beat
// the full-name fallback, and a dedicated state/city/zip field beats
// values re-derived from address parsing.
type Accumulator struct {
	rec *contact.Record
	// set once the site's dedicated 2-letter state input was seen,
	// nothing else may touch State afterwards
	stateAuthoritative bool
}

func NewAccumulator(rec *contact.Record) *Accumulator {
	return &Accumulator{rec: rec}
}

// Element processes one form element (input/select/textarea) in
// document order.
func (a *Accumulator) Element(attrs ElementAttributes) {
	nameTaken := a.rec.FirstName != "" || a.rec.LastName != ""
	match, ok := classify(attrs, nameTaken)
	if !ok {
		return
	}

	switch match.Field {
	case FieldFirstName:
		a.rec.FirstName = match.Value
	case FieldLastName:
		a.rec.LastName = match.Value
	case FieldFullName:
		first, last, split := strings.Cut(match.Value, " ")
		if split {
			a.rec.FirstName = first
			a.rec.LastName = strings.TrimSpace(last)
		} else {
			a.rec.FirstName = match.Value
		}
	case FieldEmail:
		a.rec.Email = match.Value
	case FieldPhone:
		a.rec.Phone = match.Value
	case FieldDOB:
		a.rec.DOB = match.Value
	case FieldAddress:
		a.rec.Address = match.Value
		parsed, ok := addressparse.Parse(match.Value)
		if !ok {
			return
		}
		a.rec.Address = parsed.Street
		if a.rec.City == "" {
			a.rec.City = parsed.City
		}
		if a.rec.State == "" && !a.stateAuthoritative {
			a.rec.State = parsed.State
		}
		if a.rec.Zipcode == "" {
			a.rec.Zipcode = parsed.Zip
		}
	case FieldCity:
		a.rec.City = match.Value
	case FieldState:
		// hidden inputs on these sites mirror dropdown internals and
		// hold ids, not state codes
		if strings.EqualFold(attrs.Type, "hidden") {
			return
		}
		if isAuthoritativeState(attrs) {
			a.rec.State = match.Value
			a.stateAuthoritative = true
			return
		}
		if !a.stateAuthoritative {
			a.rec.State = match.Value
		}
	case FieldZip:
		a.rec.Zipcode = match.Value
	}
}

// the OneLink detail form keeps the abbreviation in a bare 2-char
// text input named "State" whose label text is unrelated
func isAuthoritativeState(attrs ElementAttributes) bool {
	return attrs.ID == "State" &&
		attrs.Name == "State" &&
		strings.EqualFold(attrs.Type, "text") &&
		attrs.MaxLength == 2
}

// TextNode recovers email/phone/dob from non-input text nodes (spans,
// divs, table cells) on read-only detail layouts. It only fills gaps
// left by the form pass, and the dob gate is stricter because
// arbitrary numeric text shows up near "birth" labels.
func (a *Accumulator) TextNode(attrs ElementAttributes) {
	text := strings.TrimSpace(attrs.Value)
	if text == "" {
		return
	}
	texts := attrs.matchTexts()

	if a.rec.Email == "" && strings.Contains(text, "@") &&
		textutil.MatchAny(texts, emailMatchers) {
		a.rec.Email = text
	}
	if a.rec.Phone == "" && textutil.MatchAny(texts, phoneMatchers) &&
		textutil.DigitCount(text) >= 10 {
		a.rec.Phone = text
	}
	if a.rec.DOB == "" && textutil.MatchAny(texts, dobMatchers) &&
		dobTextRegex.MatchString(text) {
		a.rec.DOB = text
	}
}
