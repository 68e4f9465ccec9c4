// Package auth holds the role-based permission policy. Every check is a
// pure function of the acting user and, where relevant, the target record.
package auth

import (
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

// IsStaff reports whether the user may act on other users' loans
func IsStaff(user *models.User) bool {
	if user == nil {
		return false
	}
	switch user.Role() {
	case models.RoleAdmin, models.RoleLibrarian:
		return true
	}
	return false
}

// IsAdmin reports whether the user has the admin role
func IsAdmin(user *models.User) bool {
	return user != nil && user.Role() == models.RoleAdmin
}

// CanManageCatalog gates book create, update and delete
func CanManageCatalog(user *models.User) bool {
	return IsStaff(user)
}

// CanManageUsers gates user listing, creation, deletion and role changes
func CanManageUsers(user *models.User) bool {
	return IsAdmin(user)
}

// CanActOnUser is the self-or-admin object check
func CanActOnUser(actor *models.User, targetID int64) bool {
	if actor == nil {
		return false
	}
	return actor.ID == targetID || IsAdmin(actor)
}

// CanReturnFor reports whether actor may return book
func CanReturnFor(actor *models.User, book *models.Book) bool {
	if actor == nil {
		return false
	}
	return book.IsBorrowedBy(actor.ID) || IsStaff(actor)
}

// CanSeeBorrower reports whether viewer may learn who holds book
func CanSeeBorrower(viewer *models.User, book *models.Book) bool {
	if viewer == nil {
		return false
	}
	return book.IsBorrowedBy(viewer.ID) || IsStaff(viewer)
}

// ValidateCatalogManager returns a permission error unless user is staff
func ValidateCatalogManager(user *models.User) error {
	if !CanManageCatalog(user) {
		return apperrors.NewForbiddenError("only admins and librarians can manage the catalog")
	}
	return nil
}

// ValidateUserManager returns a permission error unless user is an admin
func ValidateUserManager(user *models.User) error {
	if !CanManageUsers(user) {
		return apperrors.NewForbiddenError("only admins can manage users")
	}
	return nil
}

// ValidateSelfOrAdmin returns a permission error unless actor is the target or an admin
func ValidateSelfOrAdmin(actor *models.User, targetID int64) error {
	if !CanActOnUser(actor, targetID) {
		return apperrors.NewForbiddenError("you can only access your own account")
	}
	return nil
}
