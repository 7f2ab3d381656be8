package urlutil

import "net/url"

// Resolve resolves ref against base, returning an absolute URL. A ref that
// is already absolute is returned as parsed, with only dot-segments in its
// path resolved; no case normalization is applied (net/url.ResolveReference already implements RFC 3986 reference
// resolution; this wrapper exists so callers never have to parse ref
// themselves before resolving it).
func Resolve(base url.URL, ref string) (url.URL, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return url.URL{}, err
	}
	resolved := base.ResolveReference(refURL)
	return *resolved, nil
}

// FilterByHost reports whether candidate shares a host with origin,
// comparing hostnames case-insensitively and ignoring port.
func FilterByHost(origin url.URL, candidate url.URL) bool {
	return lowerASCII(origin.Hostname()) == lowerASCII(candidate.Hostname())
}
