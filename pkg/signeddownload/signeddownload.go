package signeddownload

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultExpireAfter = time.Hour

const issuer = "framestudio/download"

var ErrInvalidToken = errors.New("invalid or expired download token")

// Client signs short-lived links to single files, so they can be fetched
// without the bearer token, e.g. from an <img> tag.
type Client struct {
	secret      []byte
	expireAfter time.Duration
}

type DownloadTokenClaims struct {
	FilePath string `json:"file"`
	jwt.RegisteredClaims
}

func NewClient(secret []byte, expireAfter time.Duration) *Client {
	if expireAfter <= 0 {
		expireAfter = DefaultExpireAfter
	}
	return &Client{
		secret:      secret,
		expireAfter: expireAfter,
	}
}

func (s *Client) GenerateDownloadToken(filePath string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.expireAfter)
	claims := DownloadTokenClaims{
		FilePath: filePath,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, exp, err
}

// ParseDownloadToken returns the file a token was issued for.
func (s *Client) ParseDownloadToken(tokenString string) (string, error) {
	claims := &DownloadTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.FilePath == "" {
		return "", ErrInvalidToken
	}
	return claims.FilePath, nil
}
