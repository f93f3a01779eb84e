package response

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"campus-tickets-backend/logger"
)

type ErrorResponse struct {
	StatusCode  int
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	Description string
}

func (r ErrorResponse) Error() string {
	return fmt.Sprintf("StatusCode: %d, Success: %t, Message: %s, Status: %s, Description: %s", r.StatusCode, r.Success, r.Message, r.Status, r.Description)
}

func (r ErrorResponse) Send(ctx context.Context, w http.ResponseWriter) {
	logger.Errorf(ctx, r.Error())
	w.WriteHeader(r.StatusCode)
	json.NewEncoder(w).Encode(r)
}

func BadRequest(message, description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusBadRequest,
		Success:     false,
		Message:     message,
		Status:      "BAD REQUEST",
		Description: description,
	}
}

func ResourceNotFound(message, description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusNotFound,
		Success:     false,
		Message:     message,
		Status:      "NOT FOUND",
		Description: description,
	}
}

func Unauthorized() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusUnauthorized,
		Success:    false,
		Message:    "No valid Auth Token",
		Status:     "UNAUTHORISED",
	}
}

func SomethingWrong() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusInternalServerError,
		Success:    false,
		Message:    "Sorry, Something went wrong",
		Status:     "SOMETHING_WRONG",
	}
}

func InvalidData(description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusBadRequest,
		Success:     false,
		Message:     "Invalid data passed",
		Status:      "INVALID_DATA",
		Description: description,
	}
}

func InvalidCredential() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Success:    false,
		Message:    "Invalid QR code format.",
		Status:     "INVALID_CREDENTIAL",
	}
}

func WrongEvent() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Success:    false,
		Message:    "Wrong event ticket.",
		Status:     "WRONG_EVENT",
	}
}

func TicketAlreadyUsed() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusConflict,
		Success:    false,
		Message:    "This ticket has already been used",
		Status:     "ALREADY_USED",
	}
}

func TicketNotOwned() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusForbidden,
		Success:    false,
		Message:    "Ticket is not held by the presented account",
		Status:     "NOT_OWNED_BY_HOLDER",
	}
}

func NotAuthorizedVerifier() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusForbidden,
		Success:    false,
		Message:    "Only the event organizer can check tickets in",
		Status:     "NOT_AUTHORIZED",
	}
}

func ScanInFlight() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusConflict,
		Success:    false,
		Message:    "A verification is already in progress for this scanner",
		Status:     "SCAN_IN_FLIGHT",
	}
}

func CheckInRejected(description string) ErrorResponse {
	return ErrorResponse{
		StatusCode:  http.StatusUnprocessableEntity,
		Success:     false,
		Message:     "Check-in was rejected by the ledger",
		Status:      "CHECK_IN_REJECTED",
		Description: description,
	}
}

func SaleClosed() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusConflict,
		Success:    false,
		Message:    "Ticket sales are closed for this event",
		Status:     "SALE_CLOSED",
	}
}

func SoldOut() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusConflict,
		Success:    false,
		Message:    "This event is sold out",
		Status:     "SOLD_OUT",
	}
}

func PurchaseInFlight() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusConflict,
		Success:    false,
		Message:    "A purchase for this event is already in progress",
		Status:     "PURCHASE_IN_FLIGHT",
	}
}

func PurchaseIndeterminate() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusAccepted,
		Success:    false,
		Message:    "Purchase state could not be confirmed. Check your tickets before retrying",
		Status:     "PURCHASE_INDETERMINATE",
	}
}

func OverResaleCap() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Success:    false,
		Message:    "Ask price exceeds the maximum resale price",
		Status:     "OVER_RESALE_CAP",
	}
}

func SelfTrade() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Success:    false,
		Message:    "You cannot buy your own listing",
		Status:     "SELF_TRADE",
	}
}

func ListingGone() ErrorResponse {
	return ErrorResponse{
		StatusCode: http.StatusNotFound,
		Success:    false,
		Message:    "This listing is no longer available",
		Status:     "LISTING_GONE",
	}
}
