// Package gstin validates and formats Indian GST identification numbers.
//
// A GSTIN is 15 characters: a two digit state code, the holder's ten character
// PAN, an entity number, the letter Z and a mod-36 check character.
package gstin

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// Length of a GSTIN with whitespace removed.
	Length = 15

	codePoints = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var pattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

var states = map[string]string{
	"01": "Jammu and Kashmir",
	"02": "Himachal Pradesh",
	"03": "Punjab",
	"04": "Chandigarh",
	"05": "Uttarakhand",
	"06": "Haryana",
	"07": "Delhi",
	"08": "Rajasthan",
	"09": "Uttar Pradesh",
	"10": "Bihar",
	"11": "Sikkim",
	"12": "Arunachal Pradesh",
	"13": "Nagaland",
	"14": "Manipur",
	"15": "Mizoram",
	"16": "Tripura",
	"17": "Meghalaya",
	"18": "Assam",
	"19": "West Bengal",
	"20": "Jharkhand",
	"21": "Odisha",
	"22": "Chhattisgarh",
	"23": "Madhya Pradesh",
	"24": "Gujarat",
	"25": "Daman and Diu",
	"26": "Dadra and Nagar Haveli",
	"27": "Maharashtra",
	"28": "Andhra Pradesh (Old)",
	"29": "Karnataka",
	"30": "Goa",
	"31": "Lakshadweep",
	"32": "Kerala",
	"33": "Tamil Nadu",
	"34": "Puducherry",
	"35": "Andaman and Nicobar Islands",
	"36": "Telangana",
	"37": "Andhra Pradesh (New)",
}

// Result describes a checked GSTIN.
type Result struct {
	GSTIN     string `json:"gstin"`
	Valid     bool   `json:"valid"`
	State     string `json:"state,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// Normalize strips whitespace and upper-cases s.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// Validate reports whether s is a structurally valid GSTIN with a known state
// code and a correct check character.
func Validate(s string) bool {
	g := Normalize(s)
	if len(g) != Length || !pattern.MatchString(g) {
		return false
	}
	if _, ok := states[g[:2]]; !ok {
		return false
	}
	check, ok := Checksum(g[:Length-1])
	return ok && check == g[Length-1]
}

// Checksum computes the check character for the first 14 characters of a
// GSTIN. Factors alternate 1 and 2 from the left; each product contributes
// its base-36 digits.
func Checksum(body string) (byte, bool) {
	if len(body) != Length-1 {
		return 0, false
	}
	sum := 0
	for i := 0; i < len(body); i++ {
		cp := strings.IndexByte(codePoints, body[i])
		if cp < 0 {
			return 0, false
		}
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		d := cp * factor
		sum += d/36 + d%36
	}
	return codePoints[(36-sum%36)%36], true
}

// State returns the state name for a valid GSTIN.
func State(s string) (string, bool) {
	if !Validate(s) {
		return "", false
	}
	name, ok := states[Normalize(s)[:2]]
	return name, ok
}

// Format renders a GSTIN as "29 ABCDE 1234F 1Z W". Input that is not 15
// characters long is returned unchanged.
func Format(s string) string {
	g := Normalize(s)
	if len(g) != Length {
		return s
	}
	return g[:2] + " " + g[2:7] + " " + g[7:12] + " " + g[12:14] + " " + g[14:]
}

// Check validates s and fills in the derived fields.
func Check(s string) Result {
	g := Normalize(s)
	res := Result{GSTIN: g, Valid: Validate(g)}
	if res.Valid {
		res.State = states[g[:2]]
		res.Formatted = Format(g)
	}
	return res
}
