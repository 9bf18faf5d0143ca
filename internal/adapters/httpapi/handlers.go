package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/rs/zerolog/hlog"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/app/contracts"
	"github.com/skyporter/luggage-api/internal/app/users"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/platform/auth/session"
	"github.com/skyporter/luggage-api/internal/ports/out/idempotency"
)

const maxBodyBytes = 1 << 20

const bookRoute = "POST /contracts"

type provisionRequest struct {
	Role        domain.Role         `json:"role" validate:"required,oneof=contractor delivery"`
	FullName    string              `json:"fullName" validate:"required"`
	Email       openapi_types.Email `json:"email"`
	Phone       *string             `json:"phone"`
	CompanyName *string             `json:"companyName"`
}

type bookRequest struct {
	RegionID       domain.PricingRegionID `json:"regionId" validate:"required"`
	Airline        string                 `json:"airline" validate:"required"`
	FlightNumber   string                 `json:"flightNumber" validate:"required"`
	PassengerName  string                 `json:"passengerName" validate:"required"`
	PassengerPhone *string                `json:"passengerPhone"`
	PickupAddress  string                 `json:"pickupAddress" validate:"required"`
	DropoffAddress string                 `json:"dropoffAddress" validate:"required"`
	Pickup         *domain.GeoPoint       `json:"pickup"`
	Dropoff        *domain.GeoPoint       `json:"dropoff"`
	ScheduledAt    time.Time              `json:"scheduledAt" validate:"required"`
	Notes          *string                `json:"notes"`
	Luggage        []luggageParams        `json:"luggage" validate:"required,min=1,max=50,dive"`
}

type sessionRequest struct {
	Portal session.Portal `json:"portal" validate:"required,oneof=admin contractor"`
}

type sessionResponse struct {
	Portal    session.Portal `json:"portal"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Validation("body", "unreadable or too large")
	}
	return b, nil
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		writeAppError(w, r, errUnauthorized)
		return
	}
	p, err := s.Users.GetMe(r.Context(), sub)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: p})
}

func (s *Server) provisionMe(w http.ResponseWriter, r *http.Request) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		writeAppError(w, r, errUnauthorized)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	req, err := decodeParams[provisionRequest](s.validate, body)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	email := string(req.Email)
	if email == "" {
		email = tokenEmail(r.Context())
	}
	if email == "" {
		writeAppError(w, r, apperr.Validation("email", "required"))
		return
	}
	p, err := s.Users.ProvisionMe(r.Context(), sub, users.ProvisionMeInput{
		Role:        req.Role,
		FullName:    req.FullName,
		Email:       email,
		Phone:       req.Phone,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResponse{Data: p})
}

// bookContract creates a contract. Idempotency handling:
// - replay if same subject+key+route+bodyHash
// - reject if same subject+key+route with a different bodyHash (409)
func (s *Server) bookContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		writeAppError(w, r, apperr.Validation("Idempotency-Key", "required"))
		return
	}
	caller, err := s.caller(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	bodyHash, err := hashJSONBody(body)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	metaFP := idempotency.Fingerprint{
		Key:     idempotency.Key(key),
		Subject: caller.Subject,
		Method:  http.MethodPost,
		Route:   bookRoute,
	}
	respFP := metaFP
	respFP.BodyHash = bodyHash

	if s.Idem != nil {
		meta, ok, err := s.Idem.Get(ctx, metaFP)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if ok && string(meta.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, apperr.CodeIdempotencyReuse, "idempotency key reuse with different payload", nil)
			return
		}
		if ok {
			if rec, hit, err := s.Idem.Get(ctx, respFP); err == nil && hit {
				w.Header().Set("Idempotent-Replayed", "true")
				w.Header().Set("Content-Type", rec.ContentType)
				w.WriteHeader(rec.StatusCode)
				_, _ = w.Write(rec.Body)
				return
			}
		} else {
			_ = s.Idem.Put(ctx, metaFP, idempotency.Record{
				StatusCode:  http.StatusOK,
				ContentType: "text/plain",
				Body:        []byte(bodyHash),
				CreatedAt:   s.now(),
			})
		}
	}

	req, err := decodeParams[bookRequest](s.validate, body)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	c, err := s.Contracts.Book(ctx, caller, contracts.BookInput{
		RegionID:       req.RegionID,
		Airline:        req.Airline,
		FlightNumber:   req.FlightNumber,
		PassengerName:  req.PassengerName,
		PassengerPhone: req.PassengerPhone,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		Pickup:         req.Pickup,
		Dropoff:        req.Dropoff,
		ScheduledAt:    req.ScheduledAt,
		Notes:          req.Notes,
		Luggage:        luggageInputs(req.Luggage),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.BookingsCreated.Inc()
	}

	out, err := json.Marshal(dataResponse{Data: c})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if s.Idem != nil {
		if err := s.Idem.Put(ctx, respFP, idempotency.Record{
			StatusCode:  http.StatusCreated,
			ContentType: "application/json",
			Body:        out,
			CreatedAt:   s.now(),
		}); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("contract_id", string(c.ID)).Msg("idempotency record not stored")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(out)
}

// hashJSONBody hashes the compacted body so whitespace differences replay.
func hashJSONBody(body []byte) (string, error) {
	var buf bytes.Buffer
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Compact(&buf, body); err != nil {
			return "", apperr.Validation("body", "must be valid JSON")
		}
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	c, err := s.Contracts.Get(r.Context(), caller, domain.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: c})
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	pdf, name, err := s.Invoices.Render(r.Context(), caller, domain.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) getTrack(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	t, err := s.Tracking.Track(r.Context(), caller, domain.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: t})
}

// createSession exchanges a bearer identity for a portal cookie.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	caller, err := s.caller(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	req, err := decodeParams[sessionRequest](s.validate, body)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	token, exp, err := s.Sessions.Issue(caller, req.Portal)
	if errors.Is(err, session.ErrInvalid) {
		writeError(w, r, http.StatusForbidden, apperr.CodeForbidden, "role "+string(caller.Role)+" cannot open the "+string(req.Portal)+" portal", nil)
		return
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	http.SetCookie(w, s.Sessions.Cookie(req.Portal, token, exp))
	writeJSON(w, http.StatusOK, dataResponse{Data: sessionResponse{Portal: req.Portal, ExpiresAt: exp}})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	portal := session.Portal(r.URL.Query().Get("portal"))
	if !portal.Valid() {
		writeAppError(w, r, apperr.Validation("portal", "must be one of admin contractor"))
		return
	}
	http.SetCookie(w, s.Sessions.ClearCookie(portal))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return time.Now().UTC()
}
