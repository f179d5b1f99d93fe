package domain

// Endpoint represents one discovered identity-service endpoint.
// Fields match the discovery wire record: server_url, type_uris,
// local_id, canonical_id, used_yadis, display_identifier.
//
// The discovery core treats candidates as opaque values; Endpoint is the
// record an authentication flow layers on top of them.
type Endpoint struct {
	ServerURL         string   `json:"server_url"`                   // endpoint the flow redirects to
	TypeURIs          []string `json:"type_uris,omitempty"`          // protocol versions/extensions, priority order
	LocalID           string   `json:"local_id,omitempty"`           // identifier local to the endpoint
	CanonicalID       string   `json:"canonical_id,omitempty"`       // canonical identifier (i-name resolution)
	UsedYadis         bool     `json:"used_yadis,omitempty"`         // true when found via the XRDS document
	DisplayIdentifier string   `json:"display_identifier,omitempty"` // identifier shown to the end user
}

// SupportsType reports whether the endpoint advertises the given type URI.
func (e Endpoint) SupportsType(typeURI string) bool {
	for _, uri := range e.TypeURIs {
		if uri == typeURI {
			return true
		}
	}
	return false
}
