package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	clockport "github.com/skyporter/luggage-api/internal/ports/out/clock"
	"github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/messagerepo"
	"github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

type Service struct {
	repo      profilerepo.Repository
	contracts contractrepo.Repository
	messages  messagerepo.Repository
	clk       clockport.Clock
	log       zerolog.Logger

	newProfileID func() domain.ProfileID
}

func NewService(repo profilerepo.Repository, contracts contractrepo.Repository, messages messagerepo.Repository, clk clockport.Clock, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		contracts: contracts,
		messages:  messages,
		clk:       clk,
		log:       log,
		newProfileID: func() domain.ProfileID {
			return domain.ProfileID(uuid.NewString())
		},
	}
}

// Resolve maps an authenticated subject to its profile. Suspended profiles are refused.
func (s *Service) Resolve(ctx context.Context, subject domain.SubjectID) (domain.Profile, error) {
	p, err := s.GetMe(ctx, subject)
	if err != nil {
		return domain.Profile{}, err
	}
	if p.Status == domain.ProfileStatusSuspended {
		return domain.Profile{}, apperr.Forbidden("profile is suspended")
	}
	return p, nil
}

func (s *Service) GetMe(ctx context.Context, subject domain.SubjectID) (domain.Profile, error) {
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Profile{}, apperr.NotProvisioned()
		}
		return domain.Profile{}, err
	}
	return p, nil
}

// ProvisionMe creates a pending contractor or delivery profile for the caller.
// Admin profiles are only created by other admins.
func (s *Service) ProvisionMe(ctx context.Context, subject domain.SubjectID, in ProvisionMeInput) (domain.Profile, error) {
	if in.Role != domain.RoleContractor && in.Role != domain.RoleDelivery {
		return domain.Profile{}, apperr.Validation("role", "must be contractor or delivery")
	}
	return s.create(ctx, CreateUserInput{
		Subject:     subject,
		Role:        in.Role,
		FullName:    in.FullName,
		Email:       in.Email,
		Phone:       in.Phone,
		CompanyName: in.CompanyName,
	}, domain.ProfileStatusPending)
}

func (s *Service) ListUsers(ctx context.Context, in ListUsersInput) ([]domain.Profile, error) {
	if in.Role != "" && !in.Role.Valid() {
		return nil, apperr.Validation("role", "unknown role")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, apperr.Validation("status", "unknown status")
	}
	return s.repo.List(ctx, profilerepo.Filter{Role: in.Role, Status: in.Status, Query: in.Query})
}

func (s *Service) GetUser(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Profile{}, apperr.NotFound("user")
		}
		return domain.Profile{}, err
	}
	return p, nil
}

// CreateUser creates an active profile on behalf of an admin.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (domain.Profile, error) {
	if strings.TrimSpace(string(in.Subject)) == "" {
		return domain.Profile{}, apperr.Validation("subject", "must be non-empty")
	}
	if !in.Role.Valid() {
		return domain.Profile{}, apperr.Validation("role", "must be admin, contractor or delivery")
	}
	return s.create(ctx, in, domain.ProfileStatusActive)
}

func (s *Service) UpdateUser(ctx context.Context, id domain.ProfileID, in UpdateUserInput) (domain.Profile, error) {
	p, err := s.GetUser(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}

	if in.FullName.IsSpecified() {
		if in.FullName.IsNull() {
			return domain.Profile{}, apperr.Validation("fullName", "cannot be null")
		}
		name := domain.NormalizeHumanName(in.FullName.Value())
		if name == "" {
			return domain.Profile{}, apperr.Validation("fullName", "must be non-empty")
		}
		p.FullName = name
	}
	if in.Email.IsSpecified() {
		if in.Email.IsNull() {
			return domain.Profile{}, apperr.Validation("email", "cannot be null")
		}
		email := domain.NormalizeEmail(in.Email.Value())
		if err := validateEmail(email); err != nil {
			return domain.Profile{}, apperr.Validation("email", err.Error())
		}
		p.Email = email
	}
	p.Phone = applyNullable(p.Phone, in.Phone)
	p.CompanyName = applyNullable(p.CompanyName, in.CompanyName)

	return s.save(ctx, p)
}

func (s *Service) UpdateUserStatus(ctx context.Context, caller domain.Profile, id domain.ProfileID, status domain.ProfileStatus) (domain.Profile, error) {
	if !status.Valid() {
		return domain.Profile{}, apperr.Validation("status", "must be pending, active or suspended")
	}
	if id == caller.ID && status != domain.ProfileStatusActive {
		return domain.Profile{}, apperr.Conflict("admins cannot deactivate themselves")
	}
	p, err := s.GetUser(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	p.Status = status
	return s.save(ctx, p)
}

func (s *Service) UpdateUserRole(ctx context.Context, caller domain.Profile, id domain.ProfileID, role domain.Role) (domain.Profile, error) {
	if !role.Valid() {
		return domain.Profile{}, apperr.Validation("role", "must be admin, contractor or delivery")
	}
	if id == caller.ID && role != domain.RoleAdmin {
		return domain.Profile{}, apperr.Conflict("admins cannot demote themselves")
	}
	p, err := s.GetUser(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	p.Role = role
	return s.save(ctx, p)
}

// VerifyUser toggles the verified flag. Verifying a pending profile also activates it.
func (s *Service) VerifyUser(ctx context.Context, id domain.ProfileID, verified bool) (domain.Profile, error) {
	p, err := s.GetUser(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	p.Verified = verified
	if verified && p.Status == domain.ProfileStatusPending {
		p.Status = domain.ProfileStatusActive
	}
	return s.save(ctx, p)
}

// DeleteUser removes a profile and its support conversation. Profiles referenced by
// contracts cannot be deleted; suspend them instead.
func (s *Service) DeleteUser(ctx context.Context, caller domain.Profile, id domain.ProfileID) error {
	if id == caller.ID {
		return apperr.Conflict("admins cannot delete themselves")
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	for _, f := range []contractrepo.Filter{{ContractorID: &id}, {DeliveryID: &id}} {
		cs, err := s.contracts.List(ctx, f)
		if err != nil {
			return err
		}
		if len(cs) > 0 {
			return apperr.Conflict("user is referenced by contracts; suspend instead")
		}
	}
	// The profile goes first so a refused delete leaves the conversation intact. Postgres
	// cascades the messages with the profile row; the explicit delete covers the memory store.
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, profilerepo.ErrNotFound):
			return apperr.NotFound("user")
		case errors.Is(err, profilerepo.ErrInUse):
			return apperr.Conflict("user is referenced by contracts; suspend instead")
		}
		return err
	}
	if err := s.messages.DeleteConversation(ctx, domain.ConversationID(id)); err != nil {
		return err
	}
	s.log.Info().Str("profileId", string(id)).Str("by", string(caller.ID)).Msg("user deleted")
	return nil
}

// --- helpers ---

func (s *Service) create(ctx context.Context, in CreateUserInput, status domain.ProfileStatus) (domain.Profile, error) {
	if _, err := s.repo.GetBySubject(ctx, in.Subject); err == nil {
		return domain.Profile{}, alreadyExists()
	} else if !errors.Is(err, profilerepo.ErrNotFound) {
		return domain.Profile{}, err
	}

	name := domain.NormalizeHumanName(in.FullName)
	if name == "" {
		return domain.Profile{}, apperr.Validation("fullName", "must be non-empty")
	}
	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.Profile{}, apperr.Validation("email", err.Error())
	}

	now := s.clk.Now()
	p := domain.Profile{
		ID:          s.newProfileID(),
		Subject:     in.Subject,
		Role:        in.Role,
		Status:      status,
		FullName:    name,
		Email:       email,
		Phone:       trimmedOrNil(in.Phone),
		CompanyName: trimmedOrNil(in.CompanyName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		switch {
		case errors.Is(err, profilerepo.ErrSubjectAlreadyBound):
			return domain.Profile{}, alreadyExists()
		case errors.Is(err, profilerepo.ErrEmailTaken):
			return domain.Profile{}, emailTaken()
		}
		return domain.Profile{}, err
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	p.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, profilerepo.ErrNotFound):
			return domain.Profile{}, apperr.NotFound("user")
		case errors.Is(err, profilerepo.ErrEmailTaken):
			return domain.Profile{}, emailTaken()
		}
		return domain.Profile{}, err
	}
	return p, nil
}

func alreadyExists() *apperr.Error {
	return &apperr.Error{
		Status:  409,
		Code:    apperr.CodeAlreadyExists,
		Message: "A profile already exists for the authenticated subject.",
	}
}

func emailTaken() *apperr.Error {
	return &apperr.Error{
		Status:  409,
		Code:    apperr.CodeConflict,
		Message: "email already in use",
		Details: map[string]any{"email": "already in use"},
	}
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func applyNullable(cur *string, o Optional[string]) *string {
	if !o.IsSpecified() {
		return cur
	}
	if o.IsNull() {
		return nil
	}
	v := o.Value()
	return trimmedOrNil(&v)
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
