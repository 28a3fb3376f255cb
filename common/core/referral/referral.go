// Package referral derives the referrer attached to a purchase from the page
// URL and builds shareable referral links.
package referral

import (
	"net/url"
	"strings"

	"github.com/alexkalak/presale_sync/common/models"
	"github.com/ethereum/go-ethereum/common"
)

const QUERY_PARAM = "ref"

// Resolve returns the ref parameter of rawQuery unchanged when it is a valid
// address other than current. Everything else resolves to the null address.
func Resolve(current common.Address, rawQuery string) string {
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil && len(values) == 0 {
		return models.NULL_ADDRESS
	}

	ref := values.Get(QUERY_PARAM)
	if !IsValidAddress(ref) {
		return models.NULL_ADDRESS
	}
	if strings.EqualFold(ref, current.Hex()) {
		return models.NULL_ADDRESS
	}

	return ref
}

func ResolveFromURL(current common.Address, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return models.NULL_ADDRESS
	}

	return Resolve(current, u.RawQuery)
}

// Link builds <origin>?ref=<address>. Any query or fragment on origin is dropped.
func Link(origin string, address common.Address) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}

	u.RawQuery = url.Values{QUERY_PARAM: []string{address.Hex()}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// IsValidAddress accepts 0x followed by 40 hex digits. All-lower and all-upper
// digits are taken as is; mixed case has to be a correct EIP-55 checksum.
func IsValidAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	if !common.IsHexAddress(s) {
		return false
	}

	digits := s[2:]
	if digits == strings.ToLower(digits) || digits == strings.ToUpper(digits) {
		return true
	}

	return common.HexToAddress(s).Hex() == s
}
