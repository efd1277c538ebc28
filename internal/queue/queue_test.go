package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

func TestDeliverySettlesOnce(t *testing.T) {
	t.Parallel()

	var acks, nacks int
	d := NewDelivery("1", frontier.SeedItem(1), func() { acks++ }, func() { nacks++ })
	d.Ack()
	d.Nack()
	d.Ack()
	require.Equal(t, 1, acks)
	require.Zero(t, nacks)

	d = NewDelivery("2", frontier.SeedItem(2), nil, func() { nacks++ })
	d.Nack()
	d.Ack()
	require.Equal(t, 1, nacks)
}
