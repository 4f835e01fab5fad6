// Package access holds the capability table: the role set allowed to invoke
// each federation operation. Route middleware and services both evaluate it,
// so a hidden action is also rejected when called directly.
package access

import (
	"github.com/google/uuid"

	"github.com/fedsport/backend/internal/models"
	"github.com/fedsport/backend/pkg/apperr"
)

// Operation identifies an action guarded by a role set.
type Operation string

const (
	SubmitAffiliation         Operation = "affiliation.submit"
	ListOwnAffiliations       Operation = "affiliation.list_own"
	ViewAffiliation           Operation = "affiliation.view"
	ListPendingDocuments      Operation = "affiliation.list_pending_documents"
	DecideDocumentGate        Operation = "affiliation.decide_document"
	ListPendingTechnical      Operation = "affiliation.list_pending_technical"
	DecideTechnicalGate       Operation = "affiliation.decide_technical"
	UploadAffiliationDocument Operation = "affiliation.upload_document"
	ViewAffiliationDocuments  Operation = "affiliation.view_documents"
	ManageCart                Operation = "cart.manage"
	ListOwnRegistrations      Operation = "registration.list_own"
	CancelRegistration        Operation = "registration.cancel"
	CreateCheckout            Operation = "checkout.create"
	ViewPayment               Operation = "payment.view"
	ListOwnPayments           Operation = "payment.list_own"
)

var (
	athletes = []models.Role{models.RoleAthlete}
	admins   = []models.Role{models.RoleAdmin}
	staff    = []models.Role{models.RoleCoach, models.RoleAdmin}
)

var capabilities = map[Operation][]models.Role{
	SubmitAffiliation:         athletes,
	ListOwnAffiliations:       athletes,
	ViewAffiliation:           {models.RoleAthlete, models.RoleCoach, models.RoleAdmin},
	ListPendingDocuments:      admins,
	DecideDocumentGate:        admins,
	ListPendingTechnical:      staff,
	DecideTechnicalGate:       staff,
	UploadAffiliationDocument: athletes,
	ViewAffiliationDocuments:  admins,
	ManageCart:                athletes,
	ListOwnRegistrations:      athletes,
	CancelRegistration:        athletes,
	CreateCheckout:            athletes,
	ViewPayment:               {models.RoleAthlete, models.RoleAdmin},
	ListOwnPayments:           athletes,
}

// Roles returns the roles allowed to invoke op. Unknown operations allow nobody.
func Roles(op Operation) []models.Role {
	return append([]models.Role(nil), capabilities[op]...)
}

// Allowed reports whether role may invoke op.
func Allowed(role models.Role, op Operation) bool {
	for _, r := range capabilities[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize fails with an authorization error when actor's role lacks op.
func Authorize(actor models.Actor, op Operation) error {
	if !Allowed(actor.Role, op) {
		return apperr.Newf(apperr.KindAuthorization, "role %q may not perform %s", actor.Role, op)
	}
	return nil
}

// AuthorizeOwner is Authorize plus an ownership rule: athletes may only act on
// records they own, while any other permitted role may act on all records.
func AuthorizeOwner(actor models.Actor, op Operation, ownerID uuid.UUID) error {
	if err := Authorize(actor, op); err != nil {
		return err
	}
	if actor.Role == models.RoleAthlete && actor.ID != ownerID {
		return apperr.New(apperr.KindNotFound, "not found")
	}
	return nil
}
