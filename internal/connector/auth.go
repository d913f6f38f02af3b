package connector

// AuthKind names the credential shapes connectors accept.
type AuthKind string

const (
	AuthHeaderKey    AuthKind = "header_key"
	AuthBodyKey      AuthKind = "body_key"
	AuthSignatureKey AuthKind = "signature_key"
	AuthNoKey        AuthKind = "no_key"
)

// AuthType is the merchant-configured credential set for one connector
// account. Which fields are populated depends on Kind; adapters convert it to
// the shape they accept and fail with a FailedToObtainAuthType error when the
// configured shape does not match.
type AuthType struct {
	Kind      AuthKind
	APIKey    string
	Key1      string
	APISecret string
}

// HeaderKey is the single-API-key credential shape.
type HeaderKey struct {
	APIKey string
}

// BodyKey is the two-part credential shape (e.g. client id + client secret).
type BodyKey struct {
	APIKey string
	Key1   string
}

// SignatureKey is the three-part shape for connectors that sign requests.
type SignatureKey struct {
	APIKey    string
	Key1      string
	APISecret string
}

// HeaderKeyFrom converts configured credentials into the HeaderKey shape.
func HeaderKeyFrom(a AuthType) (HeaderKey, error) {
	if a.Kind != AuthHeaderKey || a.APIKey == "" {
		return HeaderKey{}, NewFailedToObtainAuthType(AuthHeaderKey, a.Kind)
	}
	return HeaderKey{APIKey: a.APIKey}, nil
}

// BodyKeyFrom converts configured credentials into the BodyKey shape.
func BodyKeyFrom(a AuthType) (BodyKey, error) {
	if a.Kind != AuthBodyKey || a.APIKey == "" || a.Key1 == "" {
		return BodyKey{}, NewFailedToObtainAuthType(AuthBodyKey, a.Kind)
	}
	return BodyKey{APIKey: a.APIKey, Key1: a.Key1}, nil
}

// SignatureKeyFrom converts configured credentials into the SignatureKey shape.
func SignatureKeyFrom(a AuthType) (SignatureKey, error) {
	if a.Kind != AuthSignatureKey || a.APIKey == "" || a.Key1 == "" || a.APISecret == "" {
		return SignatureKey{}, NewFailedToObtainAuthType(AuthSignatureKey, a.Kind)
	}
	return SignatureKey{APIKey: a.APIKey, Key1: a.Key1, APISecret: a.APISecret}, nil
}
