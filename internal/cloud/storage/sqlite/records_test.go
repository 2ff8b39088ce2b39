package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/cloud/storage"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/remote"
)

func apply(op models.OperationType, table, id string, payload models.Record) remote.ApplyRequest {
	return remote.ApplyRequest{Table: table, Operation: op, RecordID: id, Payload: payload}
}

func TestRecords_Apply(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		seed     []remote.ApplyRequest
		req      remote.ApplyRequest
		wantKind remote.ConflictKind
		wantErr  error
		wantID   string // id записи, которую облако вернуло в конфликте
	}{
		{
			name: "insert new",
			req:  apply(models.OperationInsert, models.TableOrders, "o-1", models.Record{"order_number": "A-1"}),
		},
		{
			name: "insert existing id",
			seed: []remote.ApplyRequest{
				apply(models.OperationInsert, models.TableOrders, "o-1", models.Record{"order_number": "A-1"}),
			},
			req:      apply(models.OperationInsert, models.TableOrders, "o-1", models.Record{"order_number": "A-2"}),
			wantKind: remote.ConflictDuplicate,
			wantID:   "o-1",
		},
		{
			name: "insert taken business key",
			seed: []remote.ApplyRequest{
				apply(models.OperationInsert, models.TableOrders, "o-1", models.Record{"order_number": "A-1"}),
			},
			req:      apply(models.OperationInsert, models.TableOrders, "o-2", models.Record{"order_number": "A-1"}),
			wantKind: remote.ConflictDuplicate,
			wantID:   "o-1",
		},
		{
			name: "insert without business key field",
			seed: []remote.ApplyRequest{
				apply(models.OperationInsert, models.TableOrders, "o-1", models.Record{"total": 5.0}),
			},
			req: apply(models.OperationInsert, models.TableOrders, "o-2", models.Record{"total": 5.0}),
		},
		{
			name:     "update missing",
			req:      apply(models.OperationUpdate, models.TableOrders, "o-404", models.Record{"total": 1.0}),
			wantKind: remote.ConflictNotFound,
		},
		{
			name: "update into taken business key",
			seed: []remote.ApplyRequest{
				apply(models.OperationInsert, models.TableMenuItems, "m-1", models.Record{"sku": "TEA"}),
				apply(models.OperationInsert, models.TableMenuItems, "m-2", models.Record{"sku": "COFFEE"}),
			},
			req:      apply(models.OperationUpdate, models.TableMenuItems, "m-2", models.Record{"sku": "TEA"}),
			wantKind: remote.ConflictDuplicate,
			wantID:   "m-1",
		},
		{
			name:     "delete missing",
			req:      apply(models.OperationDelete, models.TableOrders, "o-404", nil),
			wantKind: remote.ConflictNotFound,
		},
		{
			name:    "unknown table",
			req:     apply(models.OperationInsert, "products", "p-1", models.Record{}),
			wantErr: storage.ErrUnknownTable,
		},
		{
			name:    "missing id",
			req:     apply(models.OperationInsert, models.TableOrders, "", models.Record{"total": 1.0}),
			wantErr: storage.ErrInvalidMutation,
		},
		{
			name:    "bad operation",
			req:     apply(models.OperationType("UPSERT"), models.TableOrders, "o-1", models.Record{}),
			wantErr: storage.ErrInvalidMutation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, cleanup := setupTestStorage(t)
			defer cleanup()

			for _, seed := range tt.seed {
				require.NoError(t, s.Apply(ctx, seed))
			}

			err := s.ApplyAs(ctx, "pos-1", tt.req)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantKind != "":
				ce, ok := remote.AsConflict(err)
				require.True(t, ok, "expected conflict, got %v", err)
				assert.Equal(t, tt.wantKind, ce.Kind)
				if tt.wantID != "" {
					require.NotNil(t, ce.Remote)
					assert.Equal(t, tt.wantID, ce.Remote.ID())
				}
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestRecords_UpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TableOrders, "o-1",
		models.Record{"order_number": "A-1", "status": "open", "total": 10.0})))
	require.NoError(t, s.Apply(ctx, apply(models.OperationUpdate, models.TableOrders, "o-1",
		models.Record{"status": "paid"})))

	rec, err := s.Fetch(ctx, models.TableOrders, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "paid", rec["status"])
	assert.Equal(t, "A-1", rec["order_number"])
	assert.Equal(t, 10.0, rec["total"])
	assert.Equal(t, "o-1", rec.ID())
}

func TestRecords_DeleteFreesBusinessKey(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TableCustomers, "c-1", models.Record{"email": "a@b.c"})))
	require.NoError(t, s.Apply(ctx, apply(models.OperationDelete, models.TableCustomers, "c-1", nil)))
	require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TableCustomers, "c-2", models.Record{"email": "a@b.c"})))

	_, err := s.Fetch(ctx, models.TableCustomers, "c-1")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestRecords_OverwriteReplacesCollision(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TableOrders, "cloud-1",
		models.Record{"order_number": "A-1", "total": 5.0})))

	req := apply(models.OperationInsert, models.TableOrders, "local-1", models.Record{"order_number": "A-1", "total": 7.0})
	req.Overwrite = true
	require.NoError(t, s.ApplyAs(ctx, "pos-1", req))

	_, err := s.Fetch(ctx, models.TableOrders, "cloud-1")
	assert.ErrorIs(t, err, remote.ErrNotFound)

	rec, err := s.Fetch(ctx, models.TableOrders, "local-1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, rec["total"])

	// повторная перезапись той же записи заменяет данные целиком
	req = apply(models.OperationUpdate, models.TableOrders, "local-1", models.Record{"order_number": "A-1"})
	req.Overwrite = true
	require.NoError(t, s.Apply(ctx, req))

	rec, err = s.Fetch(ctx, models.TableOrders, "local-1")
	require.NoError(t, err)
	_, hasTotal := rec["total"]
	assert.False(t, hasTotal)
}

func TestRecords_CustomBusinessKeys(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t, WithBusinessKeys(map[string]string{models.TablePayments: "receipt"}))
	defer cleanup()

	require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TablePayments, "p-1", models.Record{"receipt": "R-1"})))
	err := s.Apply(ctx, apply(models.OperationInsert, models.TablePayments, "p-2", models.Record{"receipt": "R-1"}))
	_, ok := remote.AsConflict(err)
	assert.True(t, ok)

	// orders больше не проверяются по order_number
	require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TableOrders, "o-1", models.Record{"order_number": "A-1"})))
	require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TableOrders, "o-2", models.Record{"order_number": "A-1"})))
}

func TestRecords_FetchAndList(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.Fetch(ctx, models.TableOrders, "o-1")
	assert.ErrorIs(t, err, remote.ErrNotFound)

	_, err = s.Fetch(ctx, "products", "p-1")
	assert.ErrorIs(t, err, storage.ErrUnknownTable)

	_, err = s.List(ctx, "products")
	assert.ErrorIs(t, err, storage.ErrUnknownTable)

	empty, err := s.List(ctx, models.TableOrders)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"o-2", "o-1"} {
		require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TableOrders, id, models.Record{"order_number": id})))
	}
	require.NoError(t, s.Apply(ctx, apply(models.OperationInsert, models.TableEmployees, "e-1", models.Record{"employee_code": "E1"})))

	orders, err := s.List(ctx, models.TableOrders)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	// одинаковое время создания, порядок по id
	assert.Equal(t, "o-1", orders[0].ID())
	assert.Equal(t, "o-2", orders[1].ID())
}
