package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxSettles(t *testing.T) {
	g := NewSandboxGateway(0)

	res, err := g.Settle(context.Background(), Request{UserID: 1, AmountPaise: 19900, Method: "upi"})
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, res.Status)
	assert.True(t, strings.HasPrefix(res.Reference, "PYMT_"))
}

func TestSandboxDeclinesSuffix99(t *testing.T) {
	g := NewSandboxGateway(0)

	res, err := g.Settle(context.Background(), Request{UserID: 1, AmountPaise: 19999, Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.NotEmpty(t, res.Reason)
}

func TestSandboxPendingSuffix98(t *testing.T) {
	g := NewSandboxGateway(0)

	res, err := g.Settle(context.Background(), Request{UserID: 1, AmountPaise: 19998, Method: "netbanking"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
}

func TestSandboxHonorsContext(t *testing.T) {
	g := NewSandboxGateway(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Settle(ctx, Request{UserID: 1, AmountPaise: 19900, Method: "upi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
