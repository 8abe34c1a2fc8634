package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsMessageVerbatim(t *testing.T) {
	cause := errors.New("bucket quota exceeded")
	err := Wrap(KindUploadFailed, cause)

	assert.Equal(t, "bucket quota exceeded", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindUploadFailed, KindOf(err))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(KindQueryFailed, nil))
}

func TestKindOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(KindMissingPhoto, "Please capture a photo before checking in."))
	assert.Equal(t, KindMissingPhoto, KindOf(err))
	assert.True(t, Is(err, KindMissingPhoto))
	assert.False(t, Is(nil, KindMissingPhoto))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindMissingPhoto, http.StatusBadRequest},
		{KindInvalidArgument, http.StatusBadRequest},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindUploadFailed, http.StatusBadGateway},
		{KindRecordWriteFailed, http.StatusBadGateway},
		{KindQueryFailed, http.StatusInternalServerError},
		{KindRoleUpdateFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(New(tt.kind, "x")))
		})
	}
}
