package gobolt

// AuthToken is the credential structure sent in HELLO/LOGON, shaped exactly
// as the Bolt wire format expects (spec §4.3 "auth"). Build one with the
// constructors below rather than populating the map directly.
type AuthToken struct {
	tokens map[string]any
}

func (a AuthToken) asMap() map[string]any {
	if a.tokens == nil {
		return map[string]any{"scheme": "none"}
	}
	return a.tokens
}

// NoAuth disables authentication.
func NoAuth() AuthToken {
	return AuthToken{tokens: map[string]any{"scheme": "none"}}
}

// BasicAuth builds a username/password credential, optionally scoped to a
// non-default realm.
func BasicAuth(username, password, realm string) AuthToken {
	tokens := map[string]any{
		"scheme":      "basic",
		"principal":   username,
		"credentials": password,
	}
	if realm != "" {
		tokens["realm"] = realm
	}
	return AuthToken{tokens: tokens}
}

// BearerAuth builds an SSO/OIDC bearer token credential.
func BearerAuth(token string) AuthToken {
	return AuthToken{tokens: map[string]any{
		"scheme":      "bearer",
		"credentials": token,
	}}
}

// KerberosAuth builds a Kerberos ticket credential.
func KerberosAuth(ticket string) AuthToken {
	return AuthToken{tokens: map[string]any{
		"scheme":      "kerberos",
		"principal":   "",
		"credentials": ticket,
	}}
}

// CustomAuth builds an arbitrary auth scheme for servers with custom
// security plugins (spec §4.3).
func CustomAuth(scheme, principal, credentials, realm string, parameters map[string]any) AuthToken {
	tokens := map[string]any{
		"scheme":      scheme,
		"principal":   principal,
		"credentials": credentials,
	}
	if realm != "" {
		tokens["realm"] = realm
	}
	if parameters != nil {
		tokens["parameters"] = parameters
	}
	return AuthToken{tokens: tokens}
}
