package fieldmatch

import (
	"testing"

	"contactbridge/lib/contact"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		attrs    ElementAttributes
		expected Match
		ok       bool
	}{
		{
			name:     "first name by label",
			attrs:    ElementAttributes{Label: "First Name", Value: "Jane Doe", MaxLength: -1},
			expected: Match{Field: FieldFirstName, Value: "Jane"},
			ok:       true,
		},
		{
			name:     "last name by id",
			attrs:    ElementAttributes{ID: "txtLastName", Value: "Doe", MaxLength: -1},
			expected: Match{Field: FieldLastName, Value: "Doe"},
			ok:       true,
		},
		{
			name:     "email requires at sign",
			attrs:    ElementAttributes{Name: "email", Value: "not an address", MaxLength: -1},
			expected: Match{},
			ok:       false,
		},
		{
			name:     "email",
			attrs:    ElementAttributes{Name: "email", Value: "jane@example.com", MaxLength: -1},
			expected: Match{Field: FieldEmail, Value: "jane@example.com"},
			ok:       true,
		},
		{
			name:     "phone requires ten digits",
			attrs:    ElementAttributes{Label: "Phone", Value: "555-0182", MaxLength: -1},
			expected: Match{},
			ok:       false,
		},
		{
			name:     "phone keeps formatting",
			attrs:    ElementAttributes{Label: "Phone", Value: "(910) 555-0182", MaxLength: -1},
			expected: Match{Field: FieldPhone, Value: "(910) 555-0182"},
			ok:       true,
		},
		{
			name:     "dob by name",
			attrs:    ElementAttributes{Name: "dob", Value: "1/2/1990", MaxLength: -1},
			expected: Match{Field: FieldDOB, Value: "1/2/1990"},
			ok:       true,
		},
		{
			name:     "zip by postal keyword",
			attrs:    ElementAttributes{Label: "Postal Code", Value: "62704", MaxLength: -1},
			expected: Match{Field: FieldZip, Value: "62704"},
			ok:       true,
		},
		{
			name:     "empty value never matches",
			attrs:    ElementAttributes{Label: "First Name", Value: "   ", MaxLength: -1},
			expected: Match{},
			ok:       false,
		},
		{
			name:     "unrelated field",
			attrs:    ElementAttributes{Label: "Favorite Color", Value: "blue", MaxLength: -1},
			expected: Match{},
			ok:       false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Classify(tc.attrs)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestFirstNameBeatsFullName(t *testing.T) {
	var rec contact.Record
	acc := NewAccumulator(&rec)

	acc.Element(ElementAttributes{Label: "First Name", Value: "Jane Doe", MaxLength: -1})
	acc.Element(ElementAttributes{Label: "Full Name", Value: "John Smith", MaxLength: -1})

	require.Equal(t, "Jane", rec.FirstName)
	require.Empty(t, rec.LastName)
}

func TestFullNameFallbackSplits(t *testing.T) {
	var rec contact.Record
	acc := NewAccumulator(&rec)

	acc.Element(ElementAttributes{Label: "Name", Value: "John Smith Jr", MaxLength: -1})
	require.Equal(t, "John", rec.FirstName)
	require.Equal(t, "Smith Jr", rec.LastName)

	rec = contact.Record{}
	acc = NewAccumulator(&rec)
	acc.Element(ElementAttributes{Label: "Name", Value: "Cher", MaxLength: -1})
	require.Equal(t, "Cher", rec.FirstName)
	require.Empty(t, rec.LastName)
}

func TestAuthoritativeStateWinsOverParsedAddress(t *testing.T) {
	authoritative := ElementAttributes{
		Label: "Residence", ID: "State", Name: "State",
		Type: "text", MaxLength: 2, Value: "NC",
	}
	address := ElementAttributes{
		Label: "Address", Value: "123 Main St, Springfield, IL 62704", MaxLength: -1,
	}

	// state field first
	var rec contact.Record
	acc := NewAccumulator(&rec)
	acc.Element(authoritative)
	acc.Element(address)
	require.Equal(t, "NC", rec.State)
	require.Equal(t, "123 Main St", rec.Address)
	require.Equal(t, "Springfield", rec.City)
	require.Equal(t, "62704", rec.Zipcode)

	// address field first
	rec = contact.Record{}
	acc = NewAccumulator(&rec)
	acc.Element(address)
	acc.Element(authoritative)
	require.Equal(t, "NC", rec.State)
}

func TestHiddenStateInputSkipped(t *testing.T) {
	var rec contact.Record
	acc := NewAccumulator(&rec)

	acc.Element(ElementAttributes{Name: "state_internal", Type: "hidden", Value: "37", MaxLength: -1})
	require.Empty(t, rec.State)

	acc.Element(ElementAttributes{Label: "State", Value: "Illinois", MaxLength: -1})
	require.Equal(t, "Illinois", rec.State)
}

func TestExplicitCityBeatsParsedCity(t *testing.T) {
	var rec contact.Record
	acc := NewAccumulator(&rec)

	acc.Element(ElementAttributes{Label: "Address", Value: "123 Main St, Springfield, IL 62704", MaxLength: -1})
	acc.Element(ElementAttributes{Label: "City", Value: "Shelbyville", MaxLength: -1})

	require.Equal(t, "Shelbyville", rec.City)
}

func TestTextNodeRecovery(t *testing.T) {
	var rec contact.Record
	acc := NewAccumulator(&rec)

	acc.TextNode(ElementAttributes{Label: "Email", Value: "jane@example.com"})
	acc.TextNode(ElementAttributes{Label: "Phone", Value: "(910) 555-0182"})
	// non-date text near a birth label must not be taken
	acc.TextNode(ElementAttributes{Label: "Date of Birth", Value: "34 years"})
	require.Empty(t, rec.DOB)
	acc.TextNode(ElementAttributes{Label: "Date of Birth", Value: "1/2/1990"})

	require.Equal(t, "jane@example.com", rec.Email)
	require.Equal(t, "(910) 555-0182", rec.Phone)
	require.Equal(t, "1/2/1990", rec.DOB)

	// form-pass values are never overwritten by text nodes
	acc.TextNode(ElementAttributes{Label: "Email", Value: "other@example.com"})
	require.Equal(t, "jane@example.com", rec.Email)
}
