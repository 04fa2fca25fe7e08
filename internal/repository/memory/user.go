package memory

import (
	"context"
	"fmt"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type userRepository struct {
	q queries
}

func (r userRepository) Create(ctx context.Context, user *model.User) error {
	return r.q.write("users.create", func(d *dataset) error {
		for _, existing := range d.users {
			if existing.Username == user.Username {
				return errors.Conflict(fmt.Sprintf("username %s is taken", user.Username), nil)
			}
		}
		user.ID = d.nextID("users")
		d.users[user.ID] = *user
		return nil
	})
}

func (r userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var out *model.User
	err := r.q.read(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return errors.NotFound("user", nil)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var out *model.User
	err := r.q.read(func(d *dataset) error {
		for _, u := range d.users {
			if u.Username == username {
				u := u
				out = &u
				return nil
			}
		}
		return errors.NotFound("user", nil)
	})
	return out, err
}

func (r userRepository) Update(ctx context.Context, user *model.User) error {
	return r.q.write("users.update", func(d *dataset) error {
		existing, ok := d.users[user.ID]
		if !ok {
			return errors.NotFound("user", nil)
		}
		updated := *user
		updated.Username = existing.Username
		updated.CreatedAt = existing.CreatedAt
		d.users[user.ID] = updated
		return nil
	})
}

func (r userRepository) Delete(ctx context.Context, id int64) error {
	return r.q.write("users.delete", func(d *dataset) error {
		if _, ok := d.users[id]; !ok {
			return errors.NotFound("user", nil)
		}
		delete(d.users, id)
		return nil
	})
}

func (r userRepository) List(ctx context.Context) ([]*model.User, error) {
	var out []*model.User
	err := r.q.read(func(d *dataset) error {
		out = collect(d.users, nil, func(a, b *model.User) bool {
			return a.Username < b.Username
		})
		return nil
	})
	return out, err
}
