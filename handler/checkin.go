package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"campus-tickets-backend/auth"
	"campus-tickets-backend/config"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/model"
	"campus-tickets-backend/response"
	"campus-tickets-backend/verifier"

	"github.com/spf13/viper"
)

// CheckIn verifies a scanned credential against the expected event and
// drives the on-ledger check-in call. The ledger decides "already used" and
// "not owned"; this handler only translates its verdicts.
func CheckIn(service *verifier.Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.CheckInRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logger.Errorf(ctx, "checkIn: error unmarshalling request body: %+v", err)
			response.BadRequest("invalid request body", "").Send(ctx, w)
			return
		}

		if req.Data.Auth == nil {
			response.Unauthorized().Send(ctx, w)
			return
		}
		address, ok := auth.VerifyToken(viper.GetString(config.Secret), req.Data.Auth.Token)
		if !ok || address != req.Data.Verifier {
			response.Unauthorized().Send(ctx, w)
			return
		}

		credential, err := service.Verify(ctx, req.Data.RawScan, req.Data.EventAppID, req.Data.Verifier)
		if err != nil {
			var ledgerErr *verifier.LedgerError
			switch {
			case errors.Is(err, verifier.ErrInvalidCredential):
				response.InvalidCredential().Send(ctx, w)
			case errors.Is(err, verifier.ErrWrongEvent):
				response.WrongEvent().Send(ctx, w)
			case errors.Is(err, verifier.ErrAlreadyUsed):
				response.TicketAlreadyUsed().Send(ctx, w)
			case errors.Is(err, verifier.ErrNotOwnedByHolder):
				response.TicketNotOwned().Send(ctx, w)
			case errors.Is(err, verifier.ErrNotAuthorized):
				response.NotAuthorizedVerifier().Send(ctx, w)
			case errors.Is(err, verifier.ErrScanInFlight):
				response.ScanInFlight().Send(ctx, w)
			case errors.As(err, &ledgerErr):
				response.CheckInRejected(ledgerErr.Message).Send(ctx, w)
			default:
				logger.Errorf(ctx, "checkIn: verification failed: %+v", err)
				response.SomethingWrong().Send(ctx, w)
			}
			return
		}

		ticket := &model.Ticket{
			AssetID:    credential.AssetID,
			EventAppID: credential.EventAppID,
			Holder:     credential.Holder,
			CheckedIn:  true,
		}
		response.SuccessResponse{
			Data:       &response.Data{Ticket: ticket},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}
