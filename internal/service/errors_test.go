package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/onboarding-portal/internal/repository"
)

func TestStoreErr(t *testing.T) {
	err := storeErr(fmt.Errorf("upsert: %w", repository.ErrConstraint))
	require.ErrorIs(t, err, ErrValidation)
	require.NotErrorIs(t, err, ErrStoreUnavailable)

	err = storeErr(errors.New("connection refused"))
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrValidation)
}
