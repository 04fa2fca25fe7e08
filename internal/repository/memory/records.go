package memory

import (
	"context"
	"fmt"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type postmortemRepository struct {
	q queries
}

func (r postmortemRepository) Create(ctx context.Context, pm *model.Postmortem) error {
	return r.q.write("postmortems.create", func(d *dataset) error {
		for _, existing := range d.postmortems {
			if existing.DeceasedID == pm.DeceasedID {
				return errors.Conflict(fmt.Sprintf("deceased patient %d already has a postmortem", pm.DeceasedID), nil)
			}
		}
		pm.ID = d.nextID("postmortems")
		pm.Images = cloneList(pm.Images)
		d.postmortems[pm.ID] = *pm
		return nil
	})
}

func (r postmortemRepository) Get(ctx context.Context, id int64) (*model.Postmortem, error) {
	var out *model.Postmortem
	err := r.q.read(func(d *dataset) error {
		pm, ok := d.postmortems[id]
		if !ok {
			return errors.NotFound("postmortem", nil)
		}
		pm.Images = cloneList(pm.Images)
		out = &pm
		return nil
	})
	return out, err
}

func (r postmortemRepository) GetForUpdate(ctx context.Context, id int64) (*model.Postmortem, error) {
	return r.Get(ctx, id)
}

func (r postmortemRepository) GetByDeceased(ctx context.Context, deceasedID int64) (*model.Postmortem, error) {
	var out *model.Postmortem
	err := r.q.read(func(d *dataset) error {
		for _, pm := range d.postmortems {
			if pm.DeceasedID == deceasedID {
				pm := pm
				out = &pm
				return nil
			}
		}
		return errors.NotFound("postmortem", nil)
	})
	return out, err
}

func (r postmortemRepository) Update(ctx context.Context, pm *model.Postmortem) error {
	return r.q.write("postmortems.update", func(d *dataset) error {
		existing, ok := d.postmortems[pm.ID]
		if !ok {
			return errors.NotFound("postmortem", nil)
		}
		updated := *pm
		updated.DeceasedID = existing.DeceasedID
		updated.Images = cloneList(pm.Images)
		d.postmortems[pm.ID] = updated
		return nil
	})
}

func (r postmortemRepository) List(ctx context.Context, filter model.PostmortemFilter) ([]*model.Postmortem, error) {
	var out []*model.Postmortem
	err := r.q.read(func(d *dataset) error {
		out = collect(d.postmortems, func(pm *model.Postmortem) bool {
			return filter.Status == "" || pm.Status == filter.Status
		}, func(a, b *model.Postmortem) bool {
			switch {
			case a.ScheduledDate == nil && b.ScheduledDate == nil:
				return a.ID > b.ID
			case a.ScheduledDate == nil:
				return false
			case b.ScheduledDate == nil:
				return true
			case !a.ScheduledDate.Equal(*b.ScheduledDate):
				return a.ScheduledDate.After(*b.ScheduledDate)
			}
			return a.ID > b.ID
		})
		return nil
	})
	return out, err
}

type releaseRepository struct {
	q queries
}

func (r releaseRepository) Create(ctx context.Context, req *model.BodyReleaseRequest) error {
	return r.q.write("releases.create", func(d *dataset) error {
		for _, existing := range d.releases {
			if existing.DeceasedID == req.DeceasedID {
				return errors.Conflict(fmt.Sprintf("deceased patient %d already has a release request", req.DeceasedID), nil)
			}
		}
		req.ID = d.nextID("releases")
		req.Documents = cloneList(req.Documents)
		d.releases[req.ID] = *req
		return nil
	})
}

func (r releaseRepository) Get(ctx context.Context, id int64) (*model.BodyReleaseRequest, error) {
	var out *model.BodyReleaseRequest
	err := r.q.read(func(d *dataset) error {
		req, ok := d.releases[id]
		if !ok {
			return errors.NotFound("release request", nil)
		}
		req.Documents = cloneList(req.Documents)
		out = &req
		return nil
	})
	return out, err
}

func (r releaseRepository) GetForUpdate(ctx context.Context, id int64) (*model.BodyReleaseRequest, error) {
	return r.Get(ctx, id)
}

func (r releaseRepository) GetByDeceased(ctx context.Context, deceasedID int64) (*model.BodyReleaseRequest, error) {
	var out *model.BodyReleaseRequest
	err := r.q.read(func(d *dataset) error {
		for _, req := range d.releases {
			if req.DeceasedID == deceasedID {
				req := req
				out = &req
				return nil
			}
		}
		return errors.NotFound("release request", nil)
	})
	return out, err
}

func (r releaseRepository) Update(ctx context.Context, req *model.BodyReleaseRequest) error {
	return r.q.write("releases.update", func(d *dataset) error {
		existing, ok := d.releases[req.ID]
		if !ok {
			return errors.NotFound("release request", nil)
		}
		updated := *req
		updated.DeceasedID = existing.DeceasedID
		updated.RequestDate = existing.RequestDate
		updated.RequestedByID = existing.RequestedByID
		updated.Documents = cloneList(req.Documents)
		d.releases[req.ID] = updated
		return nil
	})
}

func (r releaseRepository) List(ctx context.Context, filter model.ReleaseFilter) ([]*model.BodyReleaseRequest, error) {
	var out []*model.BodyReleaseRequest
	err := r.q.read(func(d *dataset) error {
		out = collect(d.releases, func(req *model.BodyReleaseRequest) bool {
			return filter.ApprovalStatus == "" || req.ApprovalStatus == filter.ApprovalStatus
		}, func(a, b *model.BodyReleaseRequest) bool {
			if !a.RequestDate.Equal(b.RequestDate) {
				return a.RequestDate.After(b.RequestDate)
			}
			return a.ID > b.ID
		})
		return nil
	})
	return out, err
}

type taskRepository struct {
	q queries
}

func (r taskRepository) Create(ctx context.Context, t *model.Task) error {
	return r.q.write("tasks.create", func(d *dataset) error {
		t.ID = d.nextID("tasks")
		d.tasks[t.ID] = *t
		return nil
	})
}

func (r taskRepository) Get(ctx context.Context, id int64) (*model.Task, error) {
	var out *model.Task
	err := r.q.read(func(d *dataset) error {
		t, ok := d.tasks[id]
		if !ok {
			return errors.NotFound("task", nil)
		}
		out = &t
		return nil
	})
	return out, err
}

func (r taskRepository) Update(ctx context.Context, t *model.Task) error {
	return r.q.write("tasks.update", func(d *dataset) error {
		existing, ok := d.tasks[t.ID]
		if !ok {
			return errors.NotFound("task", nil)
		}
		updated := *t
		updated.CreatedAt = existing.CreatedAt
		updated.RelatedEntityType = existing.RelatedEntityType
		updated.RelatedEntityID = existing.RelatedEntityID
		d.tasks[t.ID] = updated
		return nil
	})
}

func (r taskRepository) List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error) {
	var out []*model.Task
	err := r.q.read(func(d *dataset) error {
		out = collect(d.tasks, func(t *model.Task) bool {
			return (filter.Status == "" || t.Status == filter.Status) &&
				(filter.AssignedToID == 0 || (t.AssignedToID != nil && *t.AssignedToID == filter.AssignedToID))
		}, func(a, b *model.Task) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		})
		return nil
	})
	return out, err
}

type alertRepository struct {
	q queries
}

func (r alertRepository) Create(ctx context.Context, a *model.SystemAlert) error {
	return r.q.write("alerts.create", func(d *dataset) error {
		a.ID = d.nextID("alerts")
		d.alerts[a.ID] = *a
		return nil
	})
}

func (r alertRepository) Get(ctx context.Context, id int64) (*model.SystemAlert, error) {
	var out *model.SystemAlert
	err := r.q.read(func(d *dataset) error {
		a, ok := d.alerts[id]
		if !ok {
			return errors.NotFound("system alert", nil)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r alertRepository) Update(ctx context.Context, a *model.SystemAlert) error {
	return r.q.write("alerts.update", func(d *dataset) error {
		existing, ok := d.alerts[a.ID]
		if !ok {
			return errors.NotFound("system alert", nil)
		}
		existing.Status = a.Status
		existing.AcknowledgedByID = a.AcknowledgedByID
		existing.AcknowledgedAt = a.AcknowledgedAt
		existing.ResolvedByID = a.ResolvedByID
		existing.ResolvedAt = a.ResolvedAt
		d.alerts[a.ID] = existing
		return nil
	})
}

func (r alertRepository) List(ctx context.Context, filter model.AlertFilter) ([]*model.SystemAlert, error) {
	var out []*model.SystemAlert
	err := r.q.read(func(d *dataset) error {
		out = collect(d.alerts, func(a *model.SystemAlert) bool {
			if filter.Status != "" && a.Status != filter.Status {
				return false
			}
			if filter.Severity != "" && a.Severity != filter.Severity {
				return false
			}
			if filter.RelatedEntityType != "" &&
				(a.RelatedEntityType == nil || *a.RelatedEntityType != filter.RelatedEntityType) {
				return false
			}
			if filter.RelatedEntityID != 0 &&
				(a.RelatedEntityID == nil || *a.RelatedEntityID != filter.RelatedEntityID) {
				return false
			}
			return true
		}, func(a, b *model.SystemAlert) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		})
		return nil
	})
	return out, err
}
