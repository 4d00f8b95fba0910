package geo

import "strings"

// Address is a structured postal address. All fields are optional.
type Address struct {
	Street      string `json:"street,omitempty"`
	Area        string `json:"area,omitempty"`
	City        string `json:"city,omitempty"`
	District    string `json:"district,omitempty"`
	State       string `json:"state,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countrycode,omitempty"`
}

// parts returns the display components in order
func (a Address) parts() []string {
	return []string{a.Street, a.Area, a.City, a.District, a.State, a.Postcode, a.Country}
}

// Format joins the non-empty components with sep. The country code is
// not part of the display string.
func (a Address) Format(sep string) string {
	var out []string
	for _, p := range a.parts() {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// String formats the address on one line separated by commas
func (a Address) String() string {
	return a.Format(", ")
}

// IsZero reports whether every field is empty
func (a Address) IsZero() bool {
	return a == Address{}
}

// Normalize trims every field and upper-cases the country code
func (a Address) Normalize() Address {
	return Address{
		Street:      strings.TrimSpace(a.Street),
		Area:        strings.TrimSpace(a.Area),
		City:        strings.TrimSpace(a.City),
		District:    strings.TrimSpace(a.District),
		State:       strings.TrimSpace(a.State),
		Postcode:    strings.TrimSpace(a.Postcode),
		Country:     strings.TrimSpace(a.Country),
		CountryCode: strings.ToUpper(strings.TrimSpace(a.CountryCode)),
	}
}

// Map returns the non-empty fields keyed by column name
func (a Address) Map() map[string]string {
	m := make(map[string]string, 8)
	add := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	add("street", a.Street)
	add("area", a.Area)
	add("city", a.City)
	add("district", a.District)
	add("state", a.State)
	add("postcode", a.Postcode)
	add("country", a.Country)
	add("countrycode", a.CountryCode)
	return m
}

// AddressFromMap is the inverse of Map; unknown keys are ignored
func AddressFromMap(m map[string]string) Address {
	return Address{
		Street:      m["street"],
		Area:        m["area"],
		City:        m["city"],
		District:    m["district"],
		State:       m["state"],
		Postcode:    m["postcode"],
		Country:     m["country"],
		CountryCode: m["countrycode"],
	}
}
