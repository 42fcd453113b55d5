package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
)

// Instrument wraps a Store so every logical operation reports duration and
// error class to prometheus.
func Instrument(inner Store, prom *observability.Prom) Store {
	return &instrumented{inner: inner, prom: prom}
}

type instrumented struct {
	inner Store
	prom  *observability.Prom
}

func (s *instrumented) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil {
		status = "error"
		s.prom.StoreErrorsTotal.WithLabelValues(op, classifyStoreErr(err)).Inc()
	}
	s.prom.StoreOpDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyStoreErr(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}

func (s *instrumented) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.observe("find_by_email", func() error {
		var err error
		u, err = s.inner.FindByEmail(ctx, email)
		return err
	})
	return u, err
}

func (s *instrumented) FindByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.observe("find_by_id", func() error {
		var err error
		u, err = s.inner.FindByID(ctx, id)
		return err
	})
	return u, err
}

func (s *instrumented) List(ctx context.Context) ([]user.User, error) {
	var out []user.User
	err := s.observe("list", func() error {
		var err error
		out, err = s.inner.List(ctx)
		return err
	})
	return out, err
}

func (s *instrumented) Create(ctx context.Context, params user.CreateUserParams) (user.User, error) {
	var u user.User
	err := s.observe("create", func() error {
		var err error
		u, err = s.inner.Create(ctx, params)
		return err
	})
	return u, err
}

func (s *instrumented) Update(ctx context.Context, id int64, patch user.UpdateUserParams) (user.User, error) {
	var u user.User
	err := s.observe("update", func() error {
		var err error
		u, err = s.inner.Update(ctx, id, patch)
		return err
	})
	return u, err
}

func (s *instrumented) Delete(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := s.observe("delete", func() error {
		var err error
		ok, err = s.inner.Delete(ctx, id)
		return err
	})
	return ok, err
}

func (s *instrumented) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *instrumented) Close() error {
	return s.inner.Close()
}
