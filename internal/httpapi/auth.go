package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ShopTokenManager resolves the acting shop from signed bearer tokens. With
// an empty secret enforcement is off and requests fall back to the default
// shop, which is how dev mode runs.
type ShopTokenManager struct {
	secret []byte
}

type shopClaims struct {
	jwtlib.RegisteredClaims
	ShopID string `json:"shop_id"`
}

func NewShopTokenManager(secret string) *ShopTokenManager {
	return &ShopTokenManager{secret: []byte(strings.TrimSpace(secret))}
}

// Enforced reports whether requests must present a shop token.
func (m *ShopTokenManager) Enforced() bool {
	return len(m.secret) > 0
}

func (m *ShopTokenManager) Issue(shopID string, ttl time.Duration) (string, error) {
	if !m.Enforced() {
		return "", errors.New("shop token secret is not configured")
	}
	if shopID == "" {
		return "", errors.New("shop id is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	now := time.Now().UTC()
	claims := shopClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   shopID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			Issuer:    "shopkhata",
		},
		ShopID: shopID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *ShopTokenManager) Parse(tokenStr string) (string, error) {
	claims := &shopClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}

	shopID := claims.ShopID
	if shopID == "" {
		shopID = claims.Subject
	}
	if shopID == "" {
		return "", errors.New("token carries no shop")
	}
	return shopID, nil
}
