package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/conversation"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/models"
)

func TestGuardianLinking(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)
	admin := seedUser(t, db, models.UserRoleAdmin, nil)
	svc := newUserServiceForTest(db)
	ctx := context.Background()

	second := seedUser(t, db, models.UserRoleStudent, &fx.level.ID)
	require.NoError(t, svc.LinkGuardian(ctx, principalOf(admin), dto.GuardianLinkRequest{GuardianID: fx.guardian.ID, DependentID: second.ID}))

	err := svc.LinkGuardian(ctx, principalOf(admin), dto.GuardianLinkRequest{GuardianID: fx.guardian.ID, DependentID: second.ID})
	require.ErrorIs(t, err, apperror.ErrConflict)

	err = svc.LinkGuardian(ctx, principalOf(admin), dto.GuardianLinkRequest{GuardianID: fx.teacher.ID, DependentID: second.ID})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	dependents, err := svc.Dependents(ctx, principalOf(fx.guardian))
	require.NoError(t, err)
	require.Len(t, dependents, 2)

	require.NoError(t, svc.UnlinkGuardian(ctx, principalOf(admin), dto.GuardianLinkRequest{GuardianID: fx.guardian.ID, DependentID: second.ID}))
	dependents, err = svc.Dependents(ctx, principalOf(fx.guardian))
	require.NoError(t, err)
	require.Len(t, dependents, 1)

	err = svc.LinkGuardian(ctx, principalOf(fx.teacher), dto.GuardianLinkRequest{GuardianID: fx.guardian.ID, DependentID: second.ID})
	require.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestSetStatusRejectsSelf(t *testing.T) {
	db := setupServiceDB(t)
	admin := seedUser(t, db, models.UserRoleAdmin, nil)
	svc := newUserServiceForTest(db)

	_, err := svc.SetStatus(context.Background(), principalOf(admin), admin.ID, dto.UserStatusRequest{Status: models.UserStatusRejected})
	require.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestContactsCarryConversationKey(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)
	svc := newUserServiceForTest(db)

	contacts, err := svc.Contacts(context.Background(), principalOf(fx.guardian), "teacher")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, fx.teacher.ID, contacts[0].ID)
	require.Equal(t, conversation.Key(fx.guardian.ID, fx.teacher.ID), contacts[0].ConversationID)

	_, err = svc.Contacts(context.Background(), principalOf(fx.guardian), "janitor")
	require.ErrorIs(t, err, apperror.ErrValidation)
}
