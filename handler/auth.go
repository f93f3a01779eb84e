package handler

import (
	"net/http"
	"strings"

	"campus-tickets-backend/auth"
	"campus-tickets-backend/config"

	"github.com/spf13/viper"
)

// bearerAddress extracts and verifies the caller's account address from the
// Authorization header. Used by the GET endpoints, which have no request
// body to carry the token in.
func bearerAddress(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}
	return auth.VerifyToken(viper.GetString(config.Secret), token)
}
