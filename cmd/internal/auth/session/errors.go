package session

import (
	"errors"

	"authority/cmd/identity"
	"authority/cmd/internal/apperr"
	"authority/cmd/security/token"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid session config")

func credentialsDiffer() *apperr.Error { return apperr.Unauthorized(apperr.MsgCredentialsDiffer) }

func refreshDiffers() *apperr.Error { return apperr.Unauthorized(apperr.MsgRefreshDiffers) }

func nameTaken() *apperr.Error { return apperr.Field(identity.FieldName, apperr.MsgNameTaken) }

// orphaned maps a missing account behind a valid token to Unauthorized; other store
// failures are Internal.
func orphaned(err error) *apperr.Error {
	if identity.IsNotFound(err) {
		return apperr.InvalidToken(err)
	}
	return apperr.Internal(err)
}

func invalidToken(err error) *apperr.Error {
	if errors.Is(err, token.ErrInvalidToken) {
		return apperr.InvalidToken(err)
	}
	return apperr.InvalidToken(errors.Join(token.ErrInvalidToken, err))
}
