package contact

// Record is the canonical contact shape everything downstream of
// extraction works with. Fields may be empty, extraction is best
// effort.
type Record struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	DOB       string `json:"dob"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
	Timezone  string `json:"timezone"`
}

// a record is worth sending to the CRM only if it can be deduplicated
// against existing contacts, which needs an email or a phone number
func (r Record) Transferable() bool {
	return r.Email != "" || r.Phone != ""
}
