package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("create order: %w", New(NotFound, "product not found: %d", 7))

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.Equal(t, http.StatusNotFound, KindOf(wrapped).Status)
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(nil, NotFound))
}

func TestMissingFields(t *testing.T) {
	err := MissingFields("price", "images")

	assert.Equal(t, "missing required fields: price, images", err.Error())
	assert.Equal(t, []string{"price", "images"}, err.Fields)
	assert.Equal(t, http.StatusBadRequest, err.Kind.Status)
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(Timeout, cause, "fetch image")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "fetch image: dial tcp: timeout", err.Error())
	assert.Equal(t, http.StatusRequestTimeout, KindOf(err).Status)
}
