package handler

import (
	"net/http"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/discovery"
	"campus-tickets-backend/issuer"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/market"
	"campus-tickets-backend/model"
	"campus-tickets-backend/projection"
	"campus-tickets-backend/response"
	"campus-tickets-backend/verifier"
)

// MyTickets projects the caller's held tickets from their on-ledger asset
// holdings. Tickets with an open listing are left to the resale page; a
// failing event projection skips that event rather than failing the whole
// listing.
func MyTickets(ledger algorand.Ledger, disc *discovery.Discovery, sessions issuer.Store, listings market.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		holder, ok := bearerAddress(r)
		if !ok {
			response.Unauthorized().Send(ctx, w)
			return
		}

		holdings, err := ledger.AccountAssets(ctx, holder)
		if err != nil {
			logger.Errorf(ctx, "myTickets: unable to fetch holdings for %s: %+v", holder, err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		appIDs, err := disc.TicketingApps(ctx)
		if err != nil {
			logger.Errorf(ctx, "myTickets: discovery scan failed: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		checkedIn, err := sessions.CheckedInAssets(ctx)
		if err != nil {
			logger.Errorf(ctx, "myTickets: unable to fetch check-in states: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		listed, err := listings.ListedAssetIDs(ctx)
		if err != nil {
			logger.Errorf(ctx, "myTickets: unable to fetch open listings: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		tickets := make([]model.Ticket, 0)
		for _, appID := range appIDs {
			state, err := disc.Describe(ctx, appID)
			if err != nil {
				logger.Warnf(ctx, "myTickets: skipping event %d: %+v", appID, err)
				continue
			}
			event := projection.Event(state)

			eventAssets, err := sessions.AssetsForEvent(ctx, appID)
			if err != nil {
				logger.Warnf(ctx, "myTickets: skipping event %d: %+v", appID, err)
				continue
			}

			for _, ticket := range projection.Tickets(event, holder, holdings, eventAssets) {
				if listed[ticket.AssetID] {
					continue
				}
				ticket.CheckedIn = checkedIn[ticket.AssetID]
				ticket.Credential = verifier.FormatCredential(ticket.EventAppID, ticket.AssetID, holder)
				tickets = append(tickets, ticket)
			}
		}

		response.SuccessResponse{
			Data:       &response.Data{Tickets: tickets},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}
