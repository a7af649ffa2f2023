package apperr_test

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"beanstore/internal/apperr"
)

func TestKindOfAndStatus(t *testing.T) {
	cases := []struct {
		err    error
		kind   apperr.Kind
		status int
	}{
		{apperr.Validation("bad"), apperr.KindValidation, http.StatusBadRequest},
		{apperr.Unauthorized("who"), apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.Forbidden("no"), apperr.KindForbidden, http.StatusForbidden},
		{apperr.NotFound("gone"), apperr.KindNotFound, http.StatusNotFound},
		{apperr.InvalidTransition("nope"), apperr.KindInvalidTransition, http.StatusConflict},
		{apperr.Internal("boom", sql.ErrConnDone), apperr.KindInternal, http.StatusInternalServerError},
		{errors.New("plain"), apperr.KindInternal, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("x")), apperr.KindNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, apperr.KindOf(tc.err), tc.err.Error())
		assert.Equal(t, tc.status, apperr.KindOf(tc.err).Status())
	}
}

func TestIsSentinel(t *testing.T) {
	err := fmt.Errorf("load: %w", apperr.NotFound("order not found"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotErrorIs(t, err, apperr.ErrValidation)
}

func TestPublicMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "尚未設定密碼", apperr.PublicMessage(apperr.Validation("尚未設定密碼")))

	msg := apperr.PublicMessage(apperr.Internal("db timeout: secret trace", sql.ErrConnDone))
	assert.NotContains(t, msg, "secret")
	assert.NotContains(t, apperr.PublicMessage(errors.New("disk full at /var/lib")), "/var/lib")
}
