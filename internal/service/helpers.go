package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/database"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
)

// authorize checks the capability once at operation entry.
func authorize(principal identity.Principal, capability identity.Capability) (identity.Principal, error) {
	return identity.Authorize(&principal, capability)
}

// translateRepoError maps persistence errors onto the domain taxonomy.
func translateRepoError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound(notFound)
	case database.IsUniqueViolation(err):
		return apperror.Wrap(apperror.KindConflict, "resource already exists", err)
	default:
		return err
	}
}

func uintPtr(v uint) *uint {
	return &v
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
