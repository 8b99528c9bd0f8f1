package auth

import (
	"context"
	"errors"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/tbourn/nemo-backend/internal/services"
)

// ErrInvalidToken is returned when an identity token fails verification.
var ErrInvalidToken = errors.New("invalid identity token")

// FirebaseVerifier checks Firebase ID tokens against Google's public keys.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

// Verify validates idToken and returns the caller's identity.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (services.Identity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return services.Identity{}, ErrInvalidToken
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return services.Identity{}, errors.Join(ErrInvalidToken, err)
	}
	return identityFromClaims(tok.UID, tok.Claims), nil
}

func identityFromClaims(uid string, claims map[string]interface{}) services.Identity {
	str := func(k string) string {
		v, _ := claims[k].(string)
		return strings.TrimSpace(v)
	}
	return services.Identity{
		UID:     uid,
		Email:   str("email"),
		Name:    str("name"),
		Picture: str("picture"),
	}
}
