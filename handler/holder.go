package handler

import (
	"net/http"
	"time"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/auth"
	"campus-tickets-backend/config"
	"campus-tickets-backend/custody"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/model"
	"campus-tickets-backend/response"

	"github.com/spf13/viper"
)

const tokenTTL = 24 * time.Hour

// RegisterHolder provisions a ledger account for a new user, parks the keys
// in custody and hands back a bearer token bound to the account address.
func RegisterHolder(ledger algorand.Ledger, keys custody.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		account, err := ledger.GenerateAccount()
		if err != nil {
			logger.Errorf(ctx, "registerHolder: unable to generate account: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		if err := keys.SaveHolder(account); err != nil {
			logger.Errorf(ctx, "registerHolder: unable to store account: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		token, err := auth.IssueToken(viper.GetString(config.Secret), account.AccountAddress, tokenTTL)
		if err != nil {
			logger.Errorf(ctx, "registerHolder: unable to issue token: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		response.SuccessResponse{
			Data: &response.Data{Auth: &model.Auth{
				Token:   token,
				Address: account.AccountAddress,
			}},
			StatusCode: http.StatusCreated,
		}.Send(w)
	}
}
