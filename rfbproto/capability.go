package rfbproto

// Capabilities records which cache pseudo-encodings a client has
// advertised in its SetEncodings message (spec §4.7 "Capability
// negotiation"). A server must never transmit a cache message or
// rectangle encoding the client hasn't advertised here.
type Capabilities struct {
	ContentCache   bool
	PersistentCache bool
}

// ParseCapabilities scans a client's advertised encoding list for the
// cache pseudo-encodings.
func ParseCapabilities(encodings []int32) Capabilities {
	var c Capabilities
	for _, e := range encodings {
		switch e {
		case PseudoEncodingContentCache:
			c.ContentCache = true
		case PseudoEncodingPersistentCache:
			c.PersistentCache = true
		}
	}
	return c
}

// PreferPersistent reports whether the server should prefer the
// persistent-cache path over the session path for a rectangle: the
// persistent cache is advertised and a canonical hash is available; whether
// the session cache is also advertised does not change the answer (spec
// §4.7: "When both are
// advertised, persistent is preferred... where a canonical hash is
// available").
func (c Capabilities) PreferPersistent(hasCanonicalHash bool) bool {
	return c.PersistentCache && hasCanonicalHash
}

// Allowed reports whether sending a rectangle encoded with enc is
// permitted given the negotiated capabilities.
func (c Capabilities) Allowed(enc int32) bool {
	switch enc {
	case EncodingCachedRect, EncodingCachedRectInit:
		return c.ContentCache
	case EncodingPersistentCachedRect, EncodingPersistentCachedRectInit:
		return c.PersistentCache
	default:
		return true
	}
}
