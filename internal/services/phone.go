package services

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/ttacon/libphonenumber"
)

// SuffixLength is how many trailing digits identify a subscriber regardless of country prefix.
const SuffixLength = 9

// PhoneService normalises and displays phone numbers for one default region.
type PhoneService struct {
	region      string
	countryCode string
}

func NewPhoneService(region string) *PhoneService {
	region = strings.ToUpper(region)
	code := libphonenumber.GetCountryCodeForRegion(region)
	return &PhoneService{
		region:      region,
		countryCode: strconv.Itoa(code),
	}
}

// Clean strips every non-digit character.
func (p *PhoneService) Clean(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Suffix returns the last SuffixLength digits of a canonical phone.
func (p *PhoneService) Suffix(phone string) string {
	if len(phone) <= SuffixLength {
		return phone
	}
	return phone[len(phone)-SuffixLength:]
}

// Display renders a stored phone for humans, adding the default country code to local numbers.
func (p *PhoneService) Display(phone string) string {
	digits := p.Clean(phone)
	if digits == "" {
		return phone
	}
	if len(digits) == SuffixLength {
		digits = p.countryCode + digits
	}

	num, err := libphonenumber.Parse("+"+digits, p.region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return "+" + digits
	}
	return libphonenumber.Format(num, libphonenumber.INTERNATIONAL)
}
