package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickfix/internal/logger"
	"quickfix/internal/modules/request"
	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
	"quickfix/internal/store/memory"
	"quickfix/internal/types"
)

func TestSeedIsIdempotentAndRoutable(t *testing.T) {
	st := memory.New()
	svc := users.NewService(st.Users())
	ctx := context.Background()

	require.NoError(t, seed(ctx, svc, logger.Nop{}))
	require.NoError(t, seed(ctx, svc, logger.Nop{}))

	vendors, err := svc.ListByRole(ctx, users.RoleVendor)
	require.NoError(t, err)
	assert.Len(t, vendors, 4)

	v2, err := svc.Get(ctx, "vendor2")
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"worker2"}, v2.Workers)

	requests := request.NewService(st.Requests(), routing.NewSelector(st))
	r, err := requests.Create(ctx, request.CreateCommand{RequesterID: "kalyan", ProblemDescription: "TOWING_SERVICE"})
	require.NoError(t, err)
	require.NotNil(t, r.IntendedVendorID)
	assert.Equal(t, types.ID("vendor2"), *r.IntendedVendorID)
}
