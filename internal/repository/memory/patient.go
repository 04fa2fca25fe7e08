package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type patientRepository struct {
	q queries
}

func (r patientRepository) Create(ctx context.Context, p *model.DeceasedPatient) error {
	return r.q.write("patients.create", func(d *dataset) error {
		for _, existing := range d.patients {
			if existing.MRNumber == p.MRNumber {
				return errors.Conflict(fmt.Sprintf("MR number %s is already registered", p.MRNumber), nil)
			}
		}
		p.ID = d.nextID("patients")
		p.Documents = cloneList(p.Documents)
		d.patients[p.ID] = *p
		return nil
	})
}

func (r patientRepository) Get(ctx context.Context, id int64) (*model.DeceasedPatient, error) {
	var out *model.DeceasedPatient
	err := r.q.read(func(d *dataset) error {
		p, ok := d.patients[id]
		if !ok {
			return errors.NotFound("deceased patient", nil)
		}
		p.Documents = cloneList(p.Documents)
		out = &p
		return nil
	})
	return out, err
}

func (r patientRepository) GetForUpdate(ctx context.Context, id int64) (*model.DeceasedPatient, error) {
	return r.Get(ctx, id)
}

func (r patientRepository) GetByMRNumber(ctx context.Context, mrNumber string) (*model.DeceasedPatient, error) {
	var out *model.DeceasedPatient
	err := r.q.read(func(d *dataset) error {
		for _, p := range d.patients {
			if p.MRNumber == mrNumber {
				p := p
				out = &p
				return nil
			}
		}
		return errors.NotFound("deceased patient", nil)
	})
	return out, err
}

func (r patientRepository) Update(ctx context.Context, p *model.DeceasedPatient) error {
	return r.q.write("patients.update", func(d *dataset) error {
		existing, ok := d.patients[p.ID]
		if !ok {
			return errors.NotFound("deceased patient", nil)
		}
		updated := *p
		updated.MRNumber = existing.MRNumber
		updated.RegistrationDate = existing.RegistrationDate
		updated.RegisteredByID = existing.RegisteredByID
		updated.Documents = cloneList(p.Documents)
		d.patients[p.ID] = updated
		return nil
	})
}

func (r patientRepository) UpdateStatus(ctx context.Context, id int64, status model.PatientStatus) error {
	return r.q.write("patients.update_status", func(d *dataset) error {
		p, ok := d.patients[id]
		if !ok {
			return errors.NotFound("deceased patient", nil)
		}
		p.Status = status
		d.patients[id] = p
		return nil
	})
}

func byRegistrationDesc(a, b *model.DeceasedPatient) bool {
	if !a.RegistrationDate.Equal(b.RegistrationDate) {
		return a.RegistrationDate.After(b.RegistrationDate)
	}
	return a.ID > b.ID
}

func (r patientRepository) List(ctx context.Context, filter model.DeceasedFilter) ([]*model.DeceasedPatient, error) {
	page := filter.Pagination.Normalize()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var out []*model.DeceasedPatient
	err := r.q.read(func(d *dataset) error {
		all := collect(d.patients, func(p *model.DeceasedPatient) bool {
			if filter.Status != "" && p.Status != filter.Status {
				return false
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(p.FullName), search) &&
				!strings.Contains(strings.ToLower(p.MRNumber), search) {
				return false
			}
			return true
		}, byRegistrationDesc)

		if page.Offset >= len(all) {
			out = []*model.DeceasedPatient{}
			return nil
		}
		end := page.Offset + page.Limit
		if end > len(all) {
			end = len(all)
		}
		out = all[page.Offset:end]
		return nil
	})
	return out, err
}

func (r patientRepository) MaxMRSequence(ctx context.Context, year int) (int, error) {
	prefix := fmt.Sprintf("MR-%04d-", year)
	max := 0
	err := r.q.read(func(d *dataset) error {
		for _, p := range d.patients {
			if !strings.HasPrefix(p.MRNumber, prefix) {
				continue
			}
			n, err := strconv.Atoi(strings.TrimPrefix(p.MRNumber, prefix))
			if err == nil && n > max {
				max = n
			}
		}
		return nil
	})
	return max, err
}

func (r patientRepository) UnclaimedCandidates(ctx context.Context, cutoff time.Time) ([]*model.DeceasedPatient, error) {
	var out []*model.DeceasedPatient
	err := r.q.read(func(d *dataset) error {
		requested := map[int64]bool{}
		for _, req := range d.releases {
			requested[req.DeceasedID] = true
		}
		out = collect(d.patients, func(p *model.DeceasedPatient) bool {
			return p.Status != model.PatientStatusReleased &&
				p.Status != model.PatientStatusUnclaimed &&
				p.RegistrationDate.Before(cutoff) &&
				!requested[p.ID]
		}, func(a, b *model.DeceasedPatient) bool {
			return a.RegistrationDate.Before(b.RegistrationDate)
		})
		return nil
	})
	return out, err
}
