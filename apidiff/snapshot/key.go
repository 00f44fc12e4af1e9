package snapshot

import "net/url"

// EndpointKeyOf normalises a captured URL to its path, dropping scheme, host,
// query and fragment. An empty path becomes "/". A URL that does not parse is
// its own key, verbatim. Trailing slashes are significant.
func EndpointKeyOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
