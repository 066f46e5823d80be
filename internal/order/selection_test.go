package order_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pressing/internal/order"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

func TestSelectionsEditing(t *testing.T) {
	s, err := order.NewSelections(
		reconcile.Selection{ServiceID: "wash", Quantity: 1},
		reconcile.Selection{ServiceID: " wash ", Quantity: 2},
		reconcile.Selection{ServiceID: "iron", Quantity: 1},
	)
	require.NoError(t, err)
	require.Equal(t, []reconcile.Selection{{ServiceID: "wash", Quantity: 3}, {ServiceID: "iron", Quantity: 1}}, s.List())

	require.True(t, s.SetQuantity("iron", 4))
	require.False(t, s.SetQuantity("carpet", 1))
	require.True(t, s.SetQuantity("wash", 0))
	require.Equal(t, []reconcile.Selection{{ServiceID: "iron", Quantity: 4}}, s.List())

	require.True(t, s.Remove("iron"))
	require.False(t, s.Remove("iron"))
	require.Zero(t, s.Len())

	require.ErrorIs(t, s.Add(" ", 1), order.ErrBlankServiceID)
	require.ErrorIs(t, s.Add("wash", 0), order.ErrInvalidQuantity)

	require.NoError(t, s.Add("wash", 1))
	s.Clear()
	require.Empty(t, s.List())
}

func TestSelectionsListIsSnapshot(t *testing.T) {
	s, err := order.NewSelections(reconcile.Selection{ServiceID: "wash", Quantity: 1})
	require.NoError(t, err)
	list := s.List()
	list[0].Quantity = 99
	require.Equal(t, 1, s.List()[0].Quantity)
}
