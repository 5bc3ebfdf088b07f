package domain

import "time"

// APIToken is a stored credential. TokenHash is a one-way bcrypt hash; the
// plaintext is returned exactly once at creation and never persisted.
type APIToken struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// APITokenInfo is the public view of a token, safe to list.
type APITokenInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Info strips the hash from a stored token.
func (t APIToken) Info() APITokenInfo {
	return APITokenInfo{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}
