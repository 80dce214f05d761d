package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/domain"
)

const (
	infoMessage       = "SMS Proxy API v2.0 - Ready"
	echoMessage       = "API Test Route Working"
	errMissingFields  = "Phone and message are required"
	errAllFailed      = "All SMS strategies failed"
	errFailedToSend   = "Failed to send SMS"
	errMethodNotAllow = "Method not allowed"
	errNotFound       = "Not found"

	maxRequestBody    = 1 << 20
	maxMultipartInMem = 1 << 20
)

// SendPaths are the routes that accept a send request.
var SendPaths = []string{"/send", "/api/send-sms", "/api/sms"}

// Dispatcher runs the provider fallback chain for one request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.SendRequest) (domain.SendResult, error)
	ProviderNames() []string
}

// SendHandler serves the send, info and echo routes.
type SendHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	validate   *validator.Validate
	region     string
}

// NewSendHandler creates a new SendHandler. A nil validate gets a fresh validator.
func NewSendHandler(dispatcher Dispatcher, logger *slog.Logger, validate *validator.Validate, region string) *SendHandler {
	if validate == nil {
		validate = NewValidator()
	}
	return &SendHandler{
		dispatcher: dispatcher,
		logger:     logger.With("handler", "send"),
		validate:   validate,
		region:     region,
	}
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterRoutes registers the send aliases and the diagnostic echo route.
func (h *SendHandler) RegisterRoutes(r chi.Router) {
	for _, path := range SendPaths {
		r.Post(path, h.handleSend)
		r.Get(path, h.handleInfo)
	}
	r.Get("/api/test", h.handleEcho)
	r.Post("/api/test", h.handleEcho)
}

func (h *SendHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	req, err := h.decodeSendRequest(r)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to decode send request", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, SendSMSResponse{
			Error:   errFailedToSend,
			Details: err.Error(),
		})
		return
	}

	if err := h.validate.StructCtx(ctx, req); err != nil {
		details := missingFieldDetails(err)
		logger.WarnContext(ctx, "Send request failed validation", "error", fmt.Errorf("%w: %s", domain.ErrMissingField, details))
		h.writeJSON(w, http.StatusBadRequest, SendSMSResponse{
			Error:   errMissingFields,
			Details: details,
		})
		return
	}

	sendReq := domain.SendRequest{Phone: req.Phone, Message: req.Message}
	logger.InfoContext(ctx, "Send request received", "recipient", sendReq.MaskedPhone(), "message_length", len(sendReq.Message), "region", h.region)

	result, err := h.dispatcher.Dispatch(ctx, sendReq)
	if err != nil {
		if errors.Is(err, domain.ErrAllProvidersExhausted) {
			logger.ErrorContext(ctx, "All providers failed", "last_error", result.Error)
			h.writeJSON(w, http.StatusInternalServerError, SendSMSResponse{
				Error:   errAllFailed,
				Details: result.Error,
			})
			return
		}
		logger.ErrorContext(ctx, "Dispatch failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, SendSMSResponse{
			Error:   errFailedToSend,
			Details: err.Error(),
		})
		return
	}

	logger.InfoContext(ctx, "Message sent", "provider", result.Provider, "external_id", result.ExternalID)
	h.writeJSON(w, http.StatusOK, SendSMSResponse{
		Success:        true,
		TextID:         result.ExternalID,
		QuotaRemaining: result.QuotaRemaining,
		Provider:       result.Provider,
	})
}

// decodeSendRequest accepts JSON, urlencoded and multipart bodies. An empty body decodes to
// an empty request so that validation reports the missing fields.
func (h *SendHandler) decodeSendRequest(r *http.Request) (*SendSMSRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: parsing form: %v", domain.ErrUnexpected, err)
		}
		return &SendSMSRequest{Phone: r.PostForm.Get("phone"), Message: r.PostForm.Get("message")}, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartInMem); err != nil {
			return nil, fmt.Errorf("%w: parsing multipart form: %v", domain.ErrUnexpected, err)
		}
		return &SendSMSRequest{Phone: r.PostFormValue("phone"), Message: r.PostFormValue("message")}, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrUnexpected, err)
	}
	var req SendSMSRequest
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &req, nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %v", domain.ErrUnexpected, err)
	}
	return &req, nil
}

func (h *SendHandler) handleInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, InfoResponse{
		Message:   infoMessage,
		Providers: h.dispatcher.ProviderNames(),
		Region:    h.region,
	})
}

func (h *SendHandler) handleEcho(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.writeJSON(w, http.StatusOK, EchoResponse{Message: echoMessage, Method: r.Method})
		return
	}
	var received any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&received); err != nil {
		h.jsonError(w, h.logger, "Invalid JSON", err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, EchoResponse{Message: echoMessage, Method: r.Method, Received: received})
}

func missingFieldDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "missing field: " + strings.Join(fields, ", ")
}

func (h *SendHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	writeJSON(w, h.logger, status, body)
}

// jsonError is a helper to write JSON error responses.
func (h *SendHandler) jsonError(w http.ResponseWriter, logger *slog.Logger, message, details string, statusCode int) {
	logger.Warn("API Error Response", "status_code", statusCode, "message", message, "details", details)
	writeJSON(w, logger, statusCode, GenericErrorResponse{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}
