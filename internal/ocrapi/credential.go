package ocrapi

import "strings"

// Credential is the authorization token sent with every authenticated call.
// The zero value is an absent credential.
type Credential struct {
	token   string
	present bool
}

// NewCredential returns a present credential, or an absent one when token
// is blank.
func NewCredential(token string) Credential {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}
	}
	return Credential{token: token, present: true}
}

// Present reports whether a token was configured.
func (c Credential) Present() bool { return c.present }

// Token returns the raw token and whether it is present.
func (c Credential) Token() (string, bool) { return c.token, c.present }

// String never reveals the token.
func (c Credential) String() string {
	if !c.present {
		return "<absent>"
	}
	if len(c.token) <= 4 {
		return "****"
	}
	return c.token[:4] + "****"
}
