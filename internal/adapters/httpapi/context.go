package httpapi

import (
	"context"

	"github.com/skyporter/luggage-api/internal/domain"
)

// principal is who the auth layer says is calling. Email is only known for bearer tokens
// that carry the claim.
type principal struct {
	subject domain.SubjectID
	email   string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func WithSubject(ctx context.Context, subjectID domain.SubjectID) context.Context {
	return withPrincipal(ctx, principal{subject: subjectID})
}

func SubjectFromContext(ctx context.Context) (domain.SubjectID, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p.subject, ok && p.subject != ""
}

func tokenEmail(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p.email
}
