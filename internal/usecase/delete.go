package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/campusworks/edubase/internal/domain"
)

// DeleteState walks the delete controller's state machine.
type DeleteState int

const (
	DeleteDenied DeleteState = iota
	DeleteRestricted
	DeleteAwaitingConfirm
	DeleteDone
)

func (s DeleteState) String() string {
	switch s {
	case DeleteDenied:
		return "denied"
	case DeleteRestricted:
		return "restricted"
	case DeleteAwaitingConfirm:
		return "awaiting-confirm"
	case DeleteDone:
		return "done"
	default:
		return "unknown"
	}
}

// DeleteTicket is the controller's outcome: either a refusal (with the
// rule that fired), or a one-time token the confirmation must echo.
type DeleteTicket struct {
	State       DeleteState
	Token       string
	Restriction string
	Entity      domain.Entity
}

// RestrictionHook may veto deletion of a specific entity and names the
// rule that fired. Pluggable per entity kind.
type RestrictionHook func(ctx context.Context, e domain.Entity) (string, error)

type DeleteUsecase struct {
	stores       Stores
	perms        PermissionOracle
	audit        AuditSink
	settings     domain.Settings
	tokens       *cache.Cache
	restrictions map[domain.Kind]RestrictionHook
}

func NewDeleteUsecase(stores Stores, perms PermissionOracle, audit AuditSink, settings domain.Settings) *DeleteUsecase {
	uc := &DeleteUsecase{
		stores:   stores,
		perms:    perms,
		audit:    audit,
		settings: settings,
		tokens:   cache.New(settings.ActionTokenTTL, 2*settings.ActionTokenTTL),
		restrictions: map[domain.Kind]RestrictionHook{
			domain.KindInstitution: institutionHasCourses,
		},
	}
	return uc
}

// RegisterRestriction replaces the restriction hook for a kind.
func (uc *DeleteUsecase) RegisterRestriction(kind domain.Kind, hook RestrictionHook) {
	uc.restrictions[kind] = hook
}

// institutionHasCourses refuses deleting an institution that still has
// live courses.
func institutionHasCourses(ctx context.Context, e domain.Entity) (string, error) {
	inst, ok := e.(*domain.Institution)
	if !ok {
		return "", nil
	}
	if inst.CourseCount() > 0 {
		return "institution-has-courses", nil
	}
	return "", nil
}

// Prepare checks permission and the restriction hook, then hands out a
// one-time confirmation token.
func (uc *DeleteUsecase) Prepare(ctx context.Context, actor domain.Actor, kind domain.Kind, id int64) (DeleteTicket, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, kind, domain.ActionDelete) {
		return DeleteTicket{State: DeleteDenied}, nil
	}

	e, err := uc.stores.For(kind).Get(ctx, id)
	if err != nil {
		return DeleteTicket{}, err
	}

	if hook := uc.restrictions[kind]; hook != nil {
		rule, err := hook(ctx, e)
		if err != nil {
			return DeleteTicket{}, err
		}
		if rule != "" {
			return DeleteTicket{State: DeleteRestricted, Restriction: rule, Entity: e}, nil
		}
	}

	token := uuid.NewString()
	uc.tokens.Set(tokenKey(kind, id), token, cache.DefaultExpiration)

	return DeleteTicket{State: DeleteAwaitingConfirm, Token: token, Entity: e}, nil
}

// Confirm spends the token and performs the removal. A failed removal
// returns the error without consuming the caller's comment; retrying
// with a fresh Prepare is safe.
func (uc *DeleteUsecase) Confirm(ctx context.Context, actor domain.Actor, kind domain.Kind, id int64, token, comment string) (DeleteTicket, error) {
	if !uc.perms.CanMutate(ctx, actor.ID, kind, domain.ActionDelete) {
		return DeleteTicket{State: DeleteDenied}, nil
	}

	if uc.settings.RequireDeleteComment && comment == "" {
		return DeleteTicket{}, domain.ValidationError{Kind: kind, Field: "comment", Reason: "a deletion comment is required"}
	}

	e, err := uc.stores.For(kind).Get(ctx, id)
	if err != nil {
		return DeleteTicket{}, err
	}

	key := tokenKey(kind, id)
	stored, ok := uc.tokens.Get(key)
	if !ok || stored.(string) != token {
		return DeleteTicket{}, domain.ConflictError{Kind: kind, Identifier: e.Identifier(), Action: domain.ActionDelete}
	}

	if hook := uc.restrictions[kind]; hook != nil {
		rule, err := hook(ctx, e)
		if err != nil {
			return DeleteTicket{}, err
		}
		if rule != "" {
			return DeleteTicket{State: DeleteRestricted, Restriction: rule, Entity: e}, nil
		}
	}

	if err := uc.stores.For(kind).Remove(ctx, id, writeMeta(actor, comment, false)); err != nil {
		return DeleteTicket{}, err
	}
	uc.tokens.Delete(key) // spent only once the removal went through

	uc.audit.Emit(ctx, newEvent("remove", actor, kind, id, e.Identifier(), comment, nil))

	return DeleteTicket{State: DeleteDone, Entity: e}, nil
}

func tokenKey(kind domain.Kind, id int64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}
