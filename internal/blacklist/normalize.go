package blacklist

import (
	"net/url"
	"strings"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

// trackingParams are query keys dropped during normalization, in addition
// to any key starting with "utm_".
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_ga":     {},
	"_gl":     {},
	"igshid":  {},
	"yclid":   {},
	"ref_src": {},
	"si":      {},
}

// NormalizeURL parses raw and returns the canonical form used as a document
// key: lowercase host, no fragment, and no tracking parameters. Remaining
// query parameters keep their order and encoding.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", invalidURL(raw, err)
	}
	if u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return "", invalidURL(raw, nil)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = stripTracking(u.RawQuery)
	u.ForceQuery = false
	return u.String(), nil
}

func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		key := p
		if i := strings.IndexByte(p, '='); i >= 0 {
			key = p[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if isTracking(key) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}

func isTracking(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

func invalidURL(raw string, cause error) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeInvalidURL, "invalid URL: "+raw, cause)
}
