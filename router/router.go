package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"campus-tickets-backend/algorand"
	"campus-tickets-backend/config"
	"campus-tickets-backend/custody"
	"campus-tickets-backend/discovery"
	"campus-tickets-backend/factory"
	"campus-tickets-backend/handler"
	"campus-tickets-backend/healthcheck"
	"campus-tickets-backend/issuer"
	"campus-tickets-backend/logger"
	"campus-tickets-backend/market"
	"campus-tickets-backend/middleware"
	"campus-tickets-backend/projection"
	"campus-tickets-backend/response"
	"campus-tickets-backend/verifier"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

// Router wires every service and returns the router for all the API handler.
func Router(ctx context.Context) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.SetCorrelationIDHeader)
	r.Use(middleware.PanicHandler)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		response.ResourceNotFound(fmt.Sprintf("The requested resource was not found: path: %s, method: %s", req.URL.Path, req.Method), "The requested resource was not found!").Send(req.Context(), w)
	})

	r.Use(middleware.ResponseTimeLogging)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.SetContentTypeHeader)

	keys, err := custody.New(
		viper.GetString(config.VaultToken),
		viper.GetString(config.VaultUnSealKey),
		viper.GetString(config.VaultAddress),
		viper.GetString(config.HolderPath),
		viper.GetString(config.EventPath),
		viper.GetString(config.VaultCipherKey))
	if err != nil {
		logger.Fatalf(ctx, "router: Error creating vault client: %+v", err)
	}

	ledger := algorand.New(
		viper.GetString(config.AlgodAddress),
		viper.GetString(config.IndexerAddress),
		viper.GetString(config.ApiKey),
		viper.GetUint64(config.MinFee),
	)

	f := factory.NewFactory()
	db := f.DB(ctx)

	disc := discovery.New(ledger, f.Redis(ctx),
		time.Duration(viper.GetInt(config.DiscoveryCacheTTL))*time.Second)

	sessions := issuer.NewStore(db)
	issuerService := issuer.New(ledger, sessions, keys,
		time.Duration(viper.GetInt(config.PurchaseCooldown))*time.Second)

	verifierService := verifier.New(ledger, verifier.NewTreasuryFunder(ledger, keys), keys, sessions)

	// The cap base falls back to the event's current on-ledger ticket price
	// when the seller's own purchase price is unknown.
	priceLookup := func(ctx context.Context, eventAppID uint64) (uint64, error) {
		state, err := disc.Describe(ctx, eventAppID)
		if err != nil {
			return 0, err
		}
		return projection.Event(state).TicketPriceMicros, nil
	}
	listings := market.NewStore(db)
	marketService := market.New(listings, ledger, keys, priceLookup)

	r.HandleFunc("/healthcheck", healthcheck.Self).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	baseRouter := r.PathPrefix("/v1").Subrouter()

	holderRouter := baseRouter.PathPrefix("/holder").Subrouter()
	holderRouter.HandleFunc("/connect", handler.RegisterHolder(ledger, keys)).Methods(http.MethodPost)

	eventRouter := baseRouter.PathPrefix("/event").Subrouter()
	eventRouter.HandleFunc("", handler.RegisterEvent(ledger, keys, disc)).Methods(http.MethodPost)
	eventRouter.HandleFunc("", handler.GetEvents(disc)).Methods(http.MethodGet)
	eventRouter.HandleFunc("/{appID}", handler.GetEvent(disc)).Methods(http.MethodGet)
	eventRouter.HandleFunc("/check_in", handler.CheckIn(verifierService)).Methods(http.MethodPost)

	ticketRouter := baseRouter.PathPrefix("/ticket").Subrouter()
	ticketRouter.HandleFunc("/purchase", handler.Purchase(issuerService, disc)).Methods(http.MethodPost)
	ticketRouter.HandleFunc("", handler.MyTickets(ledger, disc, sessions, listings)).Methods(http.MethodGet)
	ticketRouter.HandleFunc("/sessions", handler.MySessions(issuerService)).Methods(http.MethodGet)

	marketRouter := baseRouter.PathPrefix("/market").Subrouter()
	marketRouter.HandleFunc("/listing", handler.ListTicket(marketService, ledger, disc, sessions)).Methods(http.MethodPost)
	marketRouter.HandleFunc("/listing", handler.GetListings(marketService)).Methods(http.MethodGet)
	marketRouter.HandleFunc("/buy", handler.BuyListing(marketService)).Methods(http.MethodPost)
	marketRouter.HandleFunc("/cancel", handler.CancelListing(marketService)).Methods(http.MethodPost)
	marketRouter.HandleFunc("/history", handler.GetSaleHistory(marketService)).Methods(http.MethodGet)

	return r
}
