package apperror

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Unauthorized("bad token"), http.StatusUnauthorized},
		{BadRequest("invalid level"), http.StatusBadRequest},
		{Conflict("email taken"), http.StatusConflict},
		{NotFound("notification not found"), http.StatusNotFound},
		{Internal("boom", nil), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.err.HTTPStatus(); got != c.want {
			t.Errorf("%s: status = %d, want %d", c.err.Kind, got, c.want)
		}
	}
}

func TestFrom_passesThroughAppErrors(t *testing.T) {
	orig := NotFound("account not found")
	if got := From(orig); got != orig {
		t.Errorf("From() = %v, want same *Error", got)
	}
}

func TestFrom_wrapsUnknownAsInternal(t *testing.T) {
	cause := errors.New("connection reset")
	got := From(cause)
	if got.Kind != KindInternal {
		t.Errorf("kind = %s, want internal", got.Kind)
	}
	if !errors.Is(got, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
}

func TestFrom_nil(t *testing.T) {
	if From(nil) != nil {
		t.Error("From(nil) should be nil")
	}
}
