package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/course-identity/internal/domain/repository"
)

func TestMapErr(t *testing.T) {
	other := errors.New("boom")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, repository.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), repository.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, repository.ErrConflict},
		{"other pg", &pgconn.PgError{Code: "23503"}, nil},
		{"other", other, other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapErr(tc.in)
			if tc.want == nil && tc.in != nil {
				assert.Equal(t, tc.in, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "x", deref(nullable("x")))
	assert.Equal(t, "", deref(nil))
}
