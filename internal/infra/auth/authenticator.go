package auth

import (
	"context"

	"itsmd/internal/domain"
	"itsmd/internal/infra/auth/identity"
	"itsmd/internal/infra/auth/oidc"
)

// TokenAuthenticator chains the token decoder and the identity extractor:
// bearer token in, Principal out. It is the only way a Principal enters the
// system, so both enforcement paths start from the same identity.
type TokenAuthenticator struct {
	decoder   *oidc.Decoder
	extractor *identity.Extractor
}

func NewTokenAuthenticator(decoder *oidc.Decoder, extractor *identity.Extractor) *TokenAuthenticator {
	return &TokenAuthenticator{decoder: decoder, extractor: extractor}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, bearerToken string) (domain.Principal, error) {
	claims, err := a.decoder.Decode(ctx, bearerToken)
	if err != nil {
		return domain.Principal{}, err
	}
	return a.extractor.Build(claims), nil
}
