package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/auth"
	"campus-tickets-backend/config"
	"campus-tickets-backend/custody"
	"campus-tickets-backend/discovery"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/model"
	"campus-tickets-backend/projection"
	"campus-tickets-backend/response"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

// RegisterEvent makes a freshly deployed ticketing application purchasable:
// it checks the application carries the ticketing state schema, provisions
// its operating account, and invalidates the discovery cache so the event
// shows up without waiting out the TTL.
func RegisterEvent(ledger algorand.Ledger, keys custody.Store, disc *discovery.Discovery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req model.RegisterEventRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logger.Errorf(ctx, "registerEvent: error unmarshalling request body: %+v", err)
			response.BadRequest("invalid request body", "").Send(ctx, w)
			return
		}

		if req.Data.Auth == nil {
			response.Unauthorized().Send(ctx, w)
			return
		}
		if _, ok := auth.VerifyToken(viper.GetString(config.Secret), req.Data.Auth.Token); !ok {
			response.Unauthorized().Send(ctx, w)
			return
		}

		state, err := disc.Describe(ctx, req.Data.AppID)
		if err != nil {
			logger.Errorf(ctx, "registerEvent: unable to fetch application %d: %+v", req.Data.AppID, err)
			response.SomethingWrong().Send(ctx, w)
			return
		}
		if !discovery.Matches(state, discovery.TicketingSignature) {
			response.InvalidData(fmt.Sprintf("application %d does not carry the ticketing state schema", req.Data.AppID)).Send(ctx, w)
			return
		}

		if _, ok, err := keys.EventAccount(req.Data.AppID); err != nil {
			logger.Errorf(ctx, "registerEvent: unable to look up event account: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		} else if !ok {
			account, err := ledger.GenerateAccount()
			if err != nil {
				logger.Errorf(ctx, "registerEvent: unable to generate event account: %+v", err)
				response.SomethingWrong().Send(ctx, w)
				return
			}
			if err := keys.SaveEventAccount(req.Data.AppID, account); err != nil {
				logger.Errorf(ctx, "registerEvent: unable to store event account: %+v", err)
				response.SomethingWrong().Send(ctx, w)
				return
			}
		}

		if err := disc.Invalidate(ctx); err != nil {
			logger.Warnf(ctx, "registerEvent: could not invalidate discovery cache: %+v", err)
		}

		event := projection.Event(state)
		response.SuccessResponse{
			Data:       &response.Data{Event: &event},
			StatusCode: http.StatusCreated,
		}.Send(w)
	}
}

// GetEvents lists every discovered ticketing event. A candidate whose state
// cannot be fetched is skipped, never fails the whole listing.
func GetEvents(disc *discovery.Discovery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		appIDs, err := disc.TicketingApps(ctx)
		if err != nil {
			logger.Errorf(ctx, "getEvents: discovery scan failed: %+v", err)
			response.SomethingWrong().Send(ctx, w)
			return
		}

		events := make([]model.EventDescriptor, 0, len(appIDs))
		for _, appID := range appIDs {
			state, err := disc.Describe(ctx, appID)
			if err != nil {
				logger.Warnf(ctx, "getEvents: skipping application %d: %+v", appID, err)
				continue
			}
			events = append(events, projection.Event(state))
		}

		response.SuccessResponse{
			Data:       &response.Data{Events: events},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}

// GetEvent projects a single event's current ledger state.
func GetEvent(disc *discovery.Discovery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		vars := mux.Vars(r)
		appIDString := vars["appID"]

		appID, err := strconv.ParseUint(appIDString, 10, 64)
		if err != nil {
			response.InvalidData(fmt.Sprintf("getEvent: invalid application id: %v", appIDString)).Send(ctx, w)
			logger.Errorf(ctx, "getEvent: unable to parse appID: %s: %+v", appIDString, err)
			return
		}

		state, err := disc.Describe(ctx, appID)
		if err != nil {
			logger.Errorf(ctx, "getEvent: unable to fetch application %d: %+v", appID, err)
			response.ResourceNotFound(fmt.Sprintf("event %d not found", appID), "").Send(ctx, w)
			return
		}

		event := projection.Event(state)
		response.SuccessResponse{
			Data:       &response.Data{Event: &event},
			StatusCode: http.StatusOK,
		}.Send(w)
	}
}
