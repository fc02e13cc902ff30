package authapi

import "authority/cmd/internal/auth/session"

type credentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func toPairResponse(p session.Pair) tokenPairResponse {
	return tokenPairResponse{AccessToken: p.Access.Raw, RefreshToken: p.Refresh.Raw}
}
