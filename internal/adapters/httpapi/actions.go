package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/app/chat"
	"github.com/skyporter/luggage-api/internal/app/contracts"
	"github.com/skyporter/luggage-api/internal/app/payments"
	"github.com/skyporter/luggage-api/internal/app/pricing"
	"github.com/skyporter/luggage-api/internal/app/stats"
	"github.com/skyporter/luggage-api/internal/app/tracking"
	"github.com/skyporter/luggage-api/internal/app/users"
	"github.com/skyporter/luggage-api/internal/domain"
)

type actionFunc func(ctx context.Context, caller domain.Profile, raw json.RawMessage) (any, error)

type actionSpec struct {
	roles []domain.Role
	run   actionFunc
}

func (a actionSpec) allows(r domain.Role) bool {
	for _, x := range a.roles {
		if x == r {
			return true
		}
	}
	return false
}

var (
	anyRole       = []domain.Role{domain.RoleAdmin, domain.RoleContractor, domain.RoleDelivery}
	adminOnly     = []domain.Role{domain.RoleAdmin}
	adminDelivery = []domain.Role{domain.RoleAdmin, domain.RoleDelivery}
	adminContract = []domain.Role{domain.RoleAdmin, domain.RoleContractor}
	deliveryOnly  = []domain.Role{domain.RoleDelivery}
)

// bind adapts a typed handler into an actionFunc that decodes and validates params.
func bind[P any](s *Server, fn func(ctx context.Context, caller domain.Profile, p P) (any, error)) actionFunc {
	return func(ctx context.Context, caller domain.Profile, raw json.RawMessage) (any, error) {
		p, err := decodeParams[P](s.validate, raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, caller, p)
	}
}

type actionRequest struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

type dataResponse struct {
	Data any `json:"data"`
}

// handleAction serves POST /actions: {action, params} -> {data} or the error envelope.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeAppError(w, r, apperr.Validation("body", "must be {\"action\": string, \"params\": object}"))
		return
	}
	name := strings.TrimSpace(req.Action)
	spec, ok := s.actions[name]
	if !ok {
		s.countAction("unknown", apperr.CodeUnknownAction)
		writeError(w, r, http.StatusBadRequest, apperr.CodeUnknownAction, "unknown action", map[string]any{"action": name})
		return
	}

	caller, err := s.caller(r)
	if err != nil {
		s.countAction(name, codeOf(err))
		writeAppError(w, r, err)
		return
	}
	if !spec.allows(caller.Role) {
		s.countAction(name, apperr.CodeForbidden)
		writeError(w, r, http.StatusForbidden, apperr.CodeForbidden, "role "+string(caller.Role)+" cannot call "+name, nil)
		return
	}

	out, err := spec.run(r.Context(), caller, req.Params)
	if err != nil {
		s.countAction(name, codeOf(err))
		writeAppError(w, r, err)
		return
	}
	s.countAction(name, "OK")
	writeJSON(w, http.StatusOK, dataResponse{Data: out})
}

func (s *Server) countAction(name, code string) {
	if s.Metrics != nil {
		s.Metrics.Actions.WithLabelValues(name, code).Inc()
	}
}

func codeOf(err error) string {
	if ae, ok := apperr.As(err); ok {
		return ae.Code
	}
	return apperr.CodeInternal
}

// Params.

type userIDParams struct {
	UserID domain.ProfileID `json:"userId" validate:"required"`
}

type listUsersParams struct {
	Role   domain.Role          `json:"role" validate:"omitempty,oneof=admin contractor delivery"`
	Status domain.ProfileStatus `json:"status" validate:"omitempty,oneof=pending active suspended"`
	Query  string               `json:"query"`
}

type createUserParams struct {
	Subject     domain.SubjectID    `json:"subject" validate:"required"`
	Role        domain.Role         `json:"role" validate:"required,oneof=admin contractor delivery"`
	FullName    string              `json:"fullName" validate:"required"`
	Email       openapi_types.Email `json:"email" validate:"required"`
	Phone       *string             `json:"phone"`
	CompanyName *string             `json:"companyName"`
}

type updateUserParams struct {
	UserID      domain.ProfileID          `json:"userId" validate:"required"`
	FullName    nullable.Nullable[string] `json:"fullName"`
	Email       nullable.Nullable[string] `json:"email"`
	Phone       nullable.Nullable[string] `json:"phone"`
	CompanyName nullable.Nullable[string] `json:"companyName"`
}

type userStatusParams struct {
	UserID domain.ProfileID     `json:"userId" validate:"required"`
	Status domain.ProfileStatus `json:"status" validate:"required,oneof=pending active suspended"`
}

type userRoleParams struct {
	UserID domain.ProfileID `json:"userId" validate:"required"`
	Role   domain.Role      `json:"role" validate:"required,oneof=admin contractor delivery"`
}

type verifyUserParams struct {
	UserID   domain.ProfileID `json:"userId" validate:"required"`
	Verified bool             `json:"verified"`
}

type conversationParams struct {
	ConversationID domain.ConversationID `json:"conversationId"`
}

type sendMessageParams struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Body           string                `json:"body" validate:"required"`
	ClientRef      *string               `json:"clientRef" validate:"omitempty,max=100"`
}

type getMessagesParams struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Since          *time.Time            `json:"since"`
	Limit          int                   `json:"limit" validate:"min=0,max=500"`
}

type getContractsParams struct {
	Status *domain.ContractStatus `json:"status" validate:"omitempty,oneof=pending assigned picked_up in_transit delivered cancelled"`
}

type contractIDParams struct {
	ContractID domain.ContractID `json:"contractId" validate:"required"`
}

type assignParams struct {
	ContractID domain.ContractID `json:"contractId" validate:"required"`
	DeliveryID *domain.ProfileID `json:"deliveryId"`
}

type contractStatusParams struct {
	ContractID domain.ContractID     `json:"contractId" validate:"required"`
	Status     domain.ContractStatus `json:"status" validate:"required,oneof=pending assigned picked_up in_transit delivered cancelled"`
}

type listPricingParams struct {
	IncludeInactive bool `json:"includeInactive"`
}

type upsertPricingParams struct {
	ID           domain.PricingRegionID `json:"id"`
	Name         string                 `json:"name" validate:"required"`
	BaseFeeCents int64                  `json:"baseFeeCents" validate:"min=0,max=10000000"`
	PerBagCents  int64                  `json:"perBagCents" validate:"min=0,max=10000000"`
	PerKgCents   int64                  `json:"perKgCents" validate:"min=0,max=10000000"`
	Currency     string                 `json:"currency" validate:"required,len=3"`
	Active       *bool                  `json:"active"`
}

type pricingIDParams struct {
	ID domain.PricingRegionID `json:"id" validate:"required"`
}

type luggageParams struct {
	TagNumber   string  `json:"tagNumber" validate:"required"`
	Description string  `json:"description"`
	WeightKg    float64 `json:"weightKg" validate:"gt=0,lte=1000"`
	Quantity    int     `json:"quantity" validate:"min=1,max=100"`
}

type quoteParams struct {
	RegionID domain.PricingRegionID `json:"regionId" validate:"required"`
	Luggage  []luggageParams        `json:"luggage" validate:"required,min=1,max=50,dive"`
}

type recordPaymentParams struct {
	ContractID  domain.ContractID    `json:"contractId" validate:"required"`
	AmountCents int64                `json:"amountCents" validate:"gt=0"`
	Currency    string               `json:"currency" validate:"omitempty,len=3"`
	Method      domain.PaymentMethod `json:"method" validate:"required,oneof=card bank_transfer cash invoice"`
	Status      domain.PaymentStatus `json:"status" validate:"omitempty,oneof=pending paid refunded"`
	Reference   *string              `json:"reference"`
}

type getPaymentsParams struct {
	ContractID *domain.ContractID `json:"contractId"`
}

type updateLocationParams struct {
	ContractID domain.ContractID `json:"contractId" validate:"required"`
	Lat        *float64          `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng        *float64          `json:"lng" validate:"required,gte=-180,lte=180"`
	SpeedKph   *float64          `json:"speedKph" validate:"omitempty,gte=0"`
	HeadingDeg *float64          `json:"headingDeg" validate:"omitempty,gte=0,lt=360"`
}

type getLocationsParams struct {
	ContractID domain.ContractID `json:"contractId" validate:"required"`
	Since      *time.Time        `json:"since"`
}

// statsParams takes inclusive calendar dates.
type statsParams struct {
	From   openapi_types.Date `json:"from" validate:"required"`
	To     openapi_types.Date `json:"to" validate:"required"`
	Bucket stats.Granularity  `json:"bucket" validate:"omitempty,oneof=day week month"`
}

func (p statsParams) input() stats.Input {
	return stats.Input{
		From:   p.From.Time,
		To:     p.To.Time.AddDate(0, 0, 1),
		Bucket: p.Bucket,
	}
}

func (s *Server) registry() map[string]actionSpec {
	return map[string]actionSpec{
		// Users.
		"listUsers": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, p listUsersParams) (any, error) {
			return s.Users.ListUsers(ctx, users.ListUsersInput{Role: p.Role, Status: p.Status, Query: p.Query})
		})},
		"getUser": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, p userIDParams) (any, error) {
			return s.Users.GetUser(ctx, p.UserID)
		})},
		"createUser": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, p createUserParams) (any, error) {
			return s.Users.CreateUser(ctx, users.CreateUserInput{
				Subject:     p.Subject,
				Role:        p.Role,
				FullName:    p.FullName,
				Email:       string(p.Email),
				Phone:       p.Phone,
				CompanyName: p.CompanyName,
			})
		})},
		"updateUser": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, p updateUserParams) (any, error) {
			return s.Users.UpdateUser(ctx, p.UserID, users.UpdateUserInput{
				FullName:    optionalFromNullable(p.FullName),
				Email:       optionalFromNullable(p.Email),
				Phone:       optionalFromNullable(p.Phone),
				CompanyName: optionalFromNullable(p.CompanyName),
			})
		})},
		"updateUserStatus": {adminOnly, bind(s, func(ctx context.Context, caller domain.Profile, p userStatusParams) (any, error) {
			return s.Users.UpdateUserStatus(ctx, caller, p.UserID, p.Status)
		})},
		"updateUserRole": {adminOnly, bind(s, func(ctx context.Context, caller domain.Profile, p userRoleParams) (any, error) {
			return s.Users.UpdateUserRole(ctx, caller, p.UserID, p.Role)
		})},
		"verifyUser": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, p verifyUserParams) (any, error) {
			return s.Users.VerifyUser(ctx, p.UserID, p.Verified)
		})},
		"deleteUser": {adminOnly, bind(s, func(ctx context.Context, caller domain.Profile, p userIDParams) (any, error) {
			if err := s.Users.DeleteUser(ctx, caller, p.UserID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true, "userId": p.UserID}, nil
		})},

		// Chat.
		"sendMessage": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p sendMessageParams) (any, error) {
			return s.Chat.SendMessage(ctx, caller, chat.SendInput{ConversationID: p.ConversationID, Body: p.Body, ClientRef: p.ClientRef})
		})},
		"getMessages": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p getMessagesParams) (any, error) {
			var since time.Time
			if p.Since != nil {
				since = *p.Since
			}
			return s.Chat.GetMessages(ctx, caller, p.ConversationID, since, p.Limit)
		})},
		"markRead": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p conversationParams) (any, error) {
			n, err := s.Chat.MarkRead(ctx, caller, p.ConversationID)
			if err != nil {
				return nil, err
			}
			return map[string]int{"updated": n}, nil
		})},
		"getConversations": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, _ struct{}) (any, error) {
			return s.Chat.GetConversations(ctx)
		})},
		"getUnreadCount": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p conversationParams) (any, error) {
			n, err := s.Chat.GetUnreadCount(ctx, caller, p.ConversationID)
			if err != nil {
				return nil, err
			}
			return map[string]int{"count": n}, nil
		})},

		// Contracts.
		"getContracts": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p getContractsParams) (any, error) {
			return s.Contracts.List(ctx, caller, contracts.ListInput{Status: p.Status})
		})},
		"getContract": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p contractIDParams) (any, error) {
			return s.Contracts.Get(ctx, caller, p.ContractID)
		})},
		"getAvailableContracts": {adminDelivery, bind(s, func(ctx context.Context, _ domain.Profile, _ struct{}) (any, error) {
			return s.Contracts.GetAvailable(ctx)
		})},
		"assignContract": {adminDelivery, bind(s, func(ctx context.Context, caller domain.Profile, p assignParams) (any, error) {
			return s.Contracts.Assign(ctx, caller, contracts.AssignInput{ContractID: p.ContractID, DeliveryID: p.DeliveryID})
		})},
		"updateContractStatus": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p contractStatusParams) (any, error) {
			return s.Contracts.UpdateStatus(ctx, caller, contracts.StatusInput{ContractID: p.ContractID, Status: p.Status})
		})},

		// Pricing.
		"getAllPricing": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p listPricingParams) (any, error) {
			return s.Pricing.ListPricing(ctx, caller, p.IncludeInactive)
		})},
		"upsertPricing": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, p upsertPricingParams) (any, error) {
			active := true
			if p.Active != nil {
				active = *p.Active
			}
			return s.Pricing.UpsertPricing(ctx, pricing.UpsertInput{
				ID:           p.ID,
				Name:         p.Name,
				BaseFeeCents: p.BaseFeeCents,
				PerBagCents:  p.PerBagCents,
				PerKgCents:   p.PerKgCents,
				Currency:     p.Currency,
				Active:       active,
			})
		})},
		"deletePricing": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, p pricingIDParams) (any, error) {
			if err := s.Pricing.DeletePricing(ctx, p.ID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true, "id": p.ID}, nil
		})},
		"quotePrice": {anyRole, bind(s, func(ctx context.Context, _ domain.Profile, p quoteParams) (any, error) {
			return s.Pricing.QuotePrice(ctx, p.RegionID, luggageInputs(p.Luggage))
		})},

		// Payments.
		"recordPayment": {adminOnly, bind(s, func(ctx context.Context, _ domain.Profile, p recordPaymentParams) (any, error) {
			return s.Payments.RecordPayment(ctx, payments.RecordInput{
				ContractID:  p.ContractID,
				AmountCents: p.AmountCents,
				Currency:    p.Currency,
				Method:      p.Method,
				Status:      p.Status,
				Reference:   p.Reference,
			})
		})},
		"getPayments": {adminContract, bind(s, func(ctx context.Context, caller domain.Profile, p getPaymentsParams) (any, error) {
			return s.Payments.GetPayments(ctx, caller, p.ContractID)
		})},

		// Tracking.
		"updateLocation": {deliveryOnly, bind(s, func(ctx context.Context, caller domain.Profile, p updateLocationParams) (any, error) {
			return s.Tracking.UpdateLocation(ctx, caller, tracking.UpdateInput{
				ContractID: p.ContractID,
				Lat:        *p.Lat,
				Lng:        *p.Lng,
				SpeedKph:   p.SpeedKph,
				HeadingDeg: p.HeadingDeg,
			})
		})},
		"getLocations": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p getLocationsParams) (any, error) {
			var since time.Time
			if p.Since != nil {
				since = *p.Since
			}
			return s.Tracking.GetLocations(ctx, caller, p.ContractID, since)
		})},

		// Dashboards.
		"getStats": {anyRole, bind(s, func(ctx context.Context, caller domain.Profile, p statsParams) (any, error) {
			return s.Stats.GetStats(ctx, caller, p.input())
		})},
		"geminiInsight": {adminContract, bind(s, func(ctx context.Context, caller domain.Profile, p statsParams) (any, error) {
			return s.Insights.Generate(ctx, caller, p.input())
		})},
	}
}

func luggageInputs(ps []luggageParams) []pricing.LuggageInput {
	out := make([]pricing.LuggageInput, len(ps))
	for i, p := range ps {
		out[i] = pricing.LuggageInput{TagNumber: p.TagNumber, Description: p.Description, WeightKg: p.WeightKg, Quantity: p.Quantity}
	}
	return out
}

func optionalFromNullable(n nullable.Nullable[string]) users.Optional[string] {
	if !n.IsSpecified() {
		return users.Unspecified[string]()
	}
	if n.IsNull() {
		return users.Null[string]()
	}
	v, err := n.Get()
	if err != nil {
		return users.Null[string]()
	}
	return users.Some(v)
}
