package service

import (
	"context"

	"github.com/campusworks/edubase/internal/domain"
)

// PermissionService decides who may perform which mutation. Admin
// accounts may do everything; regular accounts may create, edit, and
// enlist but not destroy or rewrite history.
type PermissionService struct {
	byUser map[int64]domain.Credential
}

func NewPermissionService(creds []domain.Credential) *PermissionService {
	byUser := make(map[int64]domain.Credential, len(creds))
	for _, c := range creds {
		byUser[c.UserID] = c
	}
	return &PermissionService{
		byUser: byUser,
	}
}

func (s *PermissionService) CanMutate(ctx context.Context, actorID int64, kind domain.Kind, action domain.Action) bool {
	cred, ok := s.byUser[actorID]
	if !ok {
		return false
	}

	if cred.Admin {
		return true
	}

	switch action {
	case domain.ActionCreate, domain.ActionEdit, domain.ActionEnlist:
		return true
	default:
		return false
	}
}
