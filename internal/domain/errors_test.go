package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{fmt.Errorf("%w: bad id", ErrValidation), KindValidation},
		{fmt.Errorf("tour x: %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("%w: dial tcp", ErrConnection), KindConnection},
		{ErrReferentialIntegrity, KindReferentialIntegrity},
		{ErrUnknownChannel, KindUnknownChannel},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
}

func TestSentinelForRoundTrip(t *testing.T) {
	for _, err := range []error{ErrConnection, ErrValidation, ErrNotFound, ErrReferentialIntegrity, ErrUnknownChannel} {
		assert.Equal(t, err, SentinelFor(KindOf(err)))
	}
	assert.Nil(t, SentinelFor(KindInternal))
	assert.Nil(t, SentinelFor("something-else"))
}
