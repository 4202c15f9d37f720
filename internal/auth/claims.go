package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload a dialing peer presents before a websocket link
// is upgraded.
type Claims struct {
	RepoID string `json:"repoId"`
	jwt.RegisteredClaims
}
