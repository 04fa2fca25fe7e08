package release

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/lifecycle"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

// StorageReleaser frees a patient's storage inside an open transaction.
type StorageReleaser interface {
	ReleaseInTx(ctx context.Context, q repository.Queries, deceasedID int64) (*model.StorageAssignment, error)
}

type ReleaseServicer interface {
	Create(ctx context.Context, req *model.CreateReleaseRequest, requestedByID *int64) (*model.BodyReleaseRequest, error)
	Get(ctx context.Context, id int64) (*model.BodyReleaseRequest, error)
	List(ctx context.Context, filter model.ReleaseFilter) ([]*model.BodyReleaseRequest, error)
	Update(ctx context.Context, id int64, req *model.UpdateReleaseRequest, actorID *int64) (*model.BodyReleaseRequest, error)
	Approve(ctx context.Context, id int64, actorID *int64) (*model.BodyReleaseRequest, error)
	Reject(ctx context.Context, id int64, actorID *int64, notes *string) (*model.BodyReleaseRequest, error)
}

type Service struct {
	store   repository.Store
	storage StorageReleaser
	events  *event.Service
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewService(store repository.Store, storage StorageReleaser, events *event.Service, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:   store,
		storage: storage,
		events:  events,
		metrics: m,
		log:     log,
	}
}

// Create files a release request and moves the patient to pending_release.
func (s *Service) Create(ctx context.Context, req *model.CreateReleaseRequest, requestedByID *int64) (*model.BodyReleaseRequest, error) {
	documents := req.Documents
	if documents == nil {
		documents = model.StringList{}
	}
	release := &model.BodyReleaseRequest{
		DeceasedID:        req.DeceasedID,
		RequestDate:       time.Now().UTC(),
		RequestedByID:     requestedByID,
		NextOfKinName:     req.NextOfKinName,
		NextOfKinRelation: req.NextOfKinRelation,
		NextOfKinContact:  req.NextOfKinContact,
		IdentityVerified:  req.IdentityVerified,
		ApprovalStatus:    model.ApprovalStatusPending,
		ReleaseDate:       req.ReleaseDate,
		TransferredTo:     req.TransferredTo,
		Documents:         documents,
		Notes:             req.Notes,
	}

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		patient, err := q.Patients().GetForUpdate(ctx, req.DeceasedID)
		if err != nil {
			return err
		}

		_, err = q.Releases().GetByDeceased(ctx, req.DeceasedID)
		switch {
		case err == nil:
			return errors.Conflict(fmt.Sprintf("deceased patient %d already has a release request", req.DeceasedID), nil)
		case !errors.HasCode(err, errors.ErrNotFound):
			return err
		}

		tr, err := lifecycle.Apply(patient.Status, lifecycle.EventReleaseRequested)
		if err != nil {
			return err
		}

		if err := q.Releases().Create(ctx, release); err != nil {
			return err
		}
		if err := s.applyTransition(ctx, q, tr, patient.ID); err != nil {
			return err
		}
		return s.events.Emit(ctx, q, model.EventReleaseRequested, release)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("release requested", "release_id", release.ID, "deceased_id", release.DeceasedID)
	return release, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.BodyReleaseRequest, error) {
	return s.store.Releases().Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter model.ReleaseFilter) ([]*model.BodyReleaseRequest, error) {
	releases, err := s.store.Releases().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list release requests: %w", err)
	}
	return releases, nil
}

func (s *Service) Approve(ctx context.Context, id int64, actorID *int64) (*model.BodyReleaseRequest, error) {
	status := model.ApprovalStatusApproved
	return s.Update(ctx, id, &model.UpdateReleaseRequest{ApprovalStatus: &status}, actorID)
}

func (s *Service) Reject(ctx context.Context, id int64, actorID *int64, notes *string) (*model.BodyReleaseRequest, error) {
	status := model.ApprovalStatusRejected
	return s.Update(ctx, id, &model.UpdateReleaseRequest{ApprovalStatus: &status, Notes: notes}, actorID)
}

// Update edits a release request. Approval stamps the approver, releases
// the patient and frees their storage, all in one transaction. Rejection
// only touches the request.
func (s *Service) Update(ctx context.Context, id int64, req *model.UpdateReleaseRequest, actorID *int64) (*model.BodyReleaseRequest, error) {
	var (
		out       *model.BodyReleaseRequest
		eventType = model.EventReleaseUpdated
	)

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		current, err := q.Releases().Get(ctx, id)
		if err != nil {
			return err
		}
		patient, err := q.Patients().GetForUpdate(ctx, current.DeceasedID)
		if err != nil {
			return err
		}
		release, err := q.Releases().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if release.ApprovalStatus == model.ApprovalStatusApproved && hasDetailChanges(req) {
			return errors.InvalidTransition("an approved release can no longer be edited")
		}
		applyDetails(release, req)

		if req.ApprovalStatus != nil && *req.ApprovalStatus != release.ApprovalStatus {
			if err := lifecycle.CheckApproval(release.ApprovalStatus, *req.ApprovalStatus); err != nil {
				return err
			}

			switch *req.ApprovalStatus {
			case model.ApprovalStatusApproved:
				if err := s.approve(ctx, q, release, patient, actorID); err != nil {
					return err
				}
				eventType = model.EventReleaseApproved
			case model.ApprovalStatusRejected:
				tr, err := lifecycle.Apply(patient.Status, lifecycle.EventReleaseRejected)
				if err != nil {
					return err
				}
				if err := s.applyTransition(ctx, q, tr, patient.ID); err != nil {
					return err
				}
				release.ApprovalStatus = model.ApprovalStatusRejected
				eventType = model.EventReleaseRejected
			default:
				release.ApprovalStatus = *req.ApprovalStatus
			}
		}

		if err := q.Releases().Update(ctx, release); err != nil {
			return err
		}
		out = release
		return s.events.Emit(ctx, q, eventType, release)
	})
	if err != nil {
		return nil, err
	}

	if eventType != model.EventReleaseUpdated {
		s.log.WithContext(ctx).Info("release decided",
			"release_id", out.ID, "deceased_id", out.DeceasedID, "approval_status", string(out.ApprovalStatus))
	}
	return out, nil
}

func (s *Service) approve(ctx context.Context, q repository.Queries, release *model.BodyReleaseRequest, patient *model.DeceasedPatient, actorID *int64) error {
	if !release.IdentityVerified {
		return errors.BadRequest("next of kin identity must be verified before approval", nil)
	}

	tr, err := lifecycle.Apply(patient.Status, lifecycle.EventReleaseApproved)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	release.ApprovalStatus = model.ApprovalStatusApproved
	release.ApprovedByID = actorID
	release.ApprovalDate = &now

	if err := s.applyTransition(ctx, q, tr, patient.ID); err != nil {
		return err
	}

	if tr.Has(lifecycle.ReleaseStorage) {
		_, err := s.storage.ReleaseInTx(ctx, q, patient.ID)
		switch {
		case err == nil:
		case errors.HasCode(err, errors.ErrNotFound), errors.HasCode(err, errors.ErrAlreadyReleased):
			// never stored, or already out of storage
		default:
			return err
		}
	}
	return nil
}

func hasDetailChanges(req *model.UpdateReleaseRequest) bool {
	return req.NextOfKinName != nil || req.NextOfKinRelation != nil || req.NextOfKinContact != nil ||
		req.IdentityVerified != nil || req.TransferredTo != nil || req.Documents != nil
}

func applyDetails(r *model.BodyReleaseRequest, req *model.UpdateReleaseRequest) {
	if req.NextOfKinName != nil {
		r.NextOfKinName = *req.NextOfKinName
	}
	if req.NextOfKinRelation != nil {
		r.NextOfKinRelation = *req.NextOfKinRelation
	}
	if req.NextOfKinContact != nil {
		r.NextOfKinContact = *req.NextOfKinContact
	}
	if req.IdentityVerified != nil {
		r.IdentityVerified = *req.IdentityVerified
	}
	if req.ReleaseDate != nil {
		r.ReleaseDate = req.ReleaseDate
	}
	if req.TransferredTo != nil {
		r.TransferredTo = req.TransferredTo
	}
	if req.Documents != nil {
		r.Documents = *req.Documents
	}
	if req.Notes != nil {
		r.Notes = req.Notes
	}
}

func (s *Service) applyTransition(ctx context.Context, q repository.Queries, tr lifecycle.Transition, deceasedID int64) error {
	if !tr.Changed {
		return nil
	}
	if err := q.Patients().UpdateStatus(ctx, deceasedID, tr.To); err != nil {
		return err
	}
	s.metrics.Transition(string(tr.Event), string(tr.To))
	return nil
}
