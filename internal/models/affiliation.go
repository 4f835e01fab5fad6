package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/fedsport/backend/pkg/apperr"
)

// GateStatus is the state of a single approval gate.
type GateStatus string

const (
	GatePending  GateStatus = "pending"
	GateApproved GateStatus = "approved"
	GateRejected GateStatus = "rejected"
)

// IsDecision reports whether s is a value a reviewer may set.
func (s GateStatus) IsDecision() bool {
	return s == GateApproved || s == GateRejected
}

// Gate names one of the two approval gates on an affiliation.
type Gate string

const (
	GateDocument  Gate = "document"
	GateTechnical Gate = "technical"
)

// AffiliationStatus is the overall status derived from both gates.
type AffiliationStatus string

const (
	AffiliationPending  AffiliationStatus = "pending"
	AffiliationApproved AffiliationStatus = "approved"
	AffiliationRejected AffiliationStatus = "rejected"
)

// OverallStatus derives the affiliation status from its gates.
func OverallStatus(document, technical GateStatus) AffiliationStatus {
	switch {
	case document == GateRejected || technical == GateRejected:
		return AffiliationRejected
	case document == GateApproved && technical == GateApproved:
		return AffiliationApproved
	default:
		return AffiliationPending
	}
}

// Affiliation is an athlete's membership request for an academy and modality.
// Status is never written directly; it is refreshed by Recompute.
type Affiliation struct {
	ID                 uuid.UUID         `json:"id"`
	AthleteID          uuid.UUID         `json:"athlete_id"`
	AcademyID          uuid.UUID         `json:"academy_id"`
	ModalityID         uuid.UUID         `json:"modality_id"`
	SupersedesID       *uuid.UUID        `json:"supersedes_id,omitempty"`
	SubmittedAt        time.Time         `json:"submitted_at"`
	DocumentGate       GateStatus        `json:"document_gate"`
	DocumentDecidedBy  *uuid.UUID        `json:"document_decided_by,omitempty"`
	DocumentDecidedAt  *time.Time        `json:"document_decided_at,omitempty"`
	TechnicalGate      GateStatus        `json:"technical_gate"`
	TechnicalDecidedBy *uuid.UUID        `json:"technical_decided_by,omitempty"`
	TechnicalDecidedAt *time.Time        `json:"technical_decided_at,omitempty"`
	Status             AffiliationStatus `json:"status"`
}

// NewAffiliation returns a submitted affiliation with both gates pending.
func NewAffiliation(athleteID, academyID, modalityID uuid.UUID, at time.Time) *Affiliation {
	a := &Affiliation{
		ID:            uuid.New(),
		AthleteID:     athleteID,
		AcademyID:     academyID,
		ModalityID:    modalityID,
		SubmittedAt:   at,
		DocumentGate:  GatePending,
		TechnicalGate: GatePending,
	}
	a.Recompute()
	return a
}

// Recompute refreshes Status from the gates.
func (a *Affiliation) Recompute() {
	a.Status = OverallStatus(a.DocumentGate, a.TechnicalGate)
}

// Gate returns the current value of the named gate.
func (a *Affiliation) Gate(g Gate) GateStatus {
	if g == GateDocument {
		return a.DocumentGate
	}
	return a.TechnicalGate
}

// CanDecide reports whether gate g may be decided now.
// Rejection at either gate closes the affiliation; the technical gate waits for documents.
func (a *Affiliation) CanDecide(g Gate) error {
	if a.Status == AffiliationRejected {
		return apperr.New(apperr.KindInvalidState, "affiliation was rejected; submit a new request")
	}
	switch g {
	case GateDocument:
		if a.DocumentGate != GatePending {
			return apperr.New(apperr.KindInvalidState, "document gate already decided")
		}
	case GateTechnical:
		if a.TechnicalGate != GatePending {
			return apperr.New(apperr.KindInvalidState, "technical gate already decided")
		}
		if a.DocumentGate != GateApproved {
			return apperr.New(apperr.KindInvalidState, "documents must be approved before technical review")
		}
	default:
		return apperr.Newf(apperr.KindValidation, "unknown gate %q", g)
	}
	return nil
}

// Decide sets gate g once and recomputes the overall status.
func (a *Affiliation) Decide(g Gate, decision GateStatus, by uuid.UUID, at time.Time) error {
	if !decision.IsDecision() {
		return apperr.Newf(apperr.KindValidation, "invalid decision %q", decision)
	}
	if err := a.CanDecide(g); err != nil {
		return err
	}
	decidedBy, decidedAt := by, at
	if g == GateDocument {
		a.DocumentGate = decision
		a.DocumentDecidedBy = &decidedBy
		a.DocumentDecidedAt = &decidedAt
	} else {
		a.TechnicalGate = decision
		a.TechnicalDecidedBy = &decidedBy
		a.TechnicalDecidedAt = &decidedAt
	}
	a.Recompute()
	return nil
}

// DecidedBy returns who decided gate g, if anyone.
func (a *Affiliation) DecidedBy(g Gate) *uuid.UUID {
	if g == GateDocument {
		return a.DocumentDecidedBy
	}
	return a.TechnicalDecidedBy
}

// Clone returns a deep copy.
func (a *Affiliation) Clone() *Affiliation {
	c := *a
	c.SupersedesID = cloneUUID(a.SupersedesID)
	c.DocumentDecidedBy = cloneUUID(a.DocumentDecidedBy)
	c.TechnicalDecidedBy = cloneUUID(a.TechnicalDecidedBy)
	c.DocumentDecidedAt = cloneTime(a.DocumentDecidedAt)
	c.TechnicalDecidedAt = cloneTime(a.TechnicalDecidedAt)
	return &c
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
