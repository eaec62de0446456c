package kanban

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFromStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindUnauthorized},
		{403, KindForbidden},
		{404, KindNotFound},
		{409, KindConflict},
		{422, KindValidation},
		{500, KindServer},
		{503, KindServer},
		{418, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
			assert.Equal(t, tc.want, kindFromStatus(tc.status))
		})
	}
}

func TestCategorize(t *testing.T) {
	t.Run("deadline is a timeout", func(t *testing.T) {
		err := categorize(fmt.Errorf("request: %w", context.DeadlineExceeded))
		assert.Equal(t, KindTimeout, err.Kind)
	})

	t.Run("other transport faults are network", func(t *testing.T) {
		err := categorize(errors.New("connection refused"))
		assert.Equal(t, KindNetwork, err.Kind)
	})
}

func TestErrorHelpers(t *testing.T) {
	notFound := fmt.Errorf("wrapped: %w", &Error{Kind: KindNotFound, Message: "gone", StatusCode: 404})

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsForbidden(notFound))
	assert.Equal(t, KindNotFound, KindOf(notFound))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	var apiErr *Error
	assert.True(t, errors.As(notFound, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
}
