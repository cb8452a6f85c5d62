package errorbank

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err  *AppError
		http int
		grpc grpccodes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, grpccodes.InvalidArgument},
		{Conflict("conflict"), http.StatusConflict, grpccodes.AlreadyExists},
		{NotFound("missing"), http.StatusNotFound, grpccodes.NotFound},
		{Unavailable("down"), http.StatusServiceUnavailable, grpccodes.Unavailable},
		{Internal("boom"), http.StatusInternalServerError, grpccodes.Internal},
	}

	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.http, tc.err.StatusCode())
			assert.Equal(t, tc.grpc, tc.err.GRPCCode())
		})
	}
}

func TestFrom(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, From(nil))
	})

	t.Run("unwraps nested app errors", func(t *testing.T) {
		inner := NotFound("missing")
		wrapped := From(errors.Join(errors.New("outer"), inner))
		assert.Equal(t, KindNotFound, wrapped.Kind())
	})

	t.Run("foreign errors become internal", func(t *testing.T) {
		appErr := From(errors.New("disk on fire"))
		assert.Equal(t, KindInternal, appErr.Kind())
		assert.ErrorContains(t, appErr, "disk on fire")
	})
}

func TestWithDetail(t *testing.T) {
	appErr := BadRequest("invalid", WithDetail("field", "quantity"))
	assert.Equal(t, "quantity", appErr.Details()["field"])
}
