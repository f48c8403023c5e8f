package models

// Identity is the handle the authentication provider issues for a signed-in
// account.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

func (i *Identity) Present() bool {
	return i != nil && i.UID != ""
}

// UIDOf returns the identity's uid, or "" for an anonymous session.
func UIDOf(i *Identity) string {
	if i == nil {
		return ""
	}
	return i.UID
}

// Account is the record written to users/<uid> on signup. It is independent
// of the provider's own credential record.
type Account struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}
