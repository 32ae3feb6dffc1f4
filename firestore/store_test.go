package firestore

import (
	"context"
	"errors"
	"os"
	"testing"

	fsapi "cloud.google.com/go/firestore"
	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFirestoreOperator(t *testing.T) {
	tests := []struct {
		op      query.ComparisonOperator
		want    string
		wantErr bool
	}{
		{query.ComparisonOperatorEq, "==", false},
		{query.ComparisonOperatorNeq, "!=", false},
		{query.ComparisonOperatorLte, "<=", false},
		{"array-contains", "array-contains", false},
		{"regex", "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got, err := firestoreOperator(tt.op)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityFilter(t *testing.T) {
	dsl := query.NewQueryBuilder().
		WhereGroup(query.LogicalOperatorOr).
		Where("status").Eq("active").
		Where("guest.age").Gt(30).
		End().
		Build()

	got, err := entityFilter(dsl.Filters)
	require.NoError(t, err)
	assert.Equal(t, fsapi.OrFilter{Filters: []fsapi.EntityFilter{
		fsapi.PropertyFilter{Path: "status", Operator: "==", Value: "active"},
		fsapi.PropertyFilter{Path: "guest.age", Operator: ">", Value: 30},
	}}, got)

	_, err = entityFilter(&query.QueryFilter{})
	assert.Error(t, err)
}

func TestBuildQuery_RejectsUnknownOperator(t *testing.T) {
	dsl := query.NewQueryBuilder().Where("a").Op("regex", "^x").Build()
	_, err := buildQuery(fsapi.Query{}, &dsl)
	assert.Error(t, err)
}

func TestFieldUpdates(t *testing.T) {
	updates := fieldUpdates(map[string]any{"status": "confirmed", "guest.age": 31.0})
	assert.Equal(t, []fsapi.Update{
		{FieldPath: fsapi.FieldPath{"guest", "age"}, Value: 31.0},
		{FieldPath: fsapi.FieldPath{"status"}, Value: "confirmed"},
	}, updates)
	assert.Empty(t, fieldUpdates(nil))
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))
	assert.ErrorIs(t, translateError(iterator.Done), iterator.Done)

	index := status.Error(codes.FailedPrecondition, "The query requires an index.")
	err := translateError(index)
	assert.True(t, core.IsKind(err, core.KindMissingIndex))
	assert.ErrorIs(t, err, index)

	other := translateError(errors.New("boom"))
	assert.Equal(t, core.KindBackendFailure, core.KindOf(other))

	datastoreMode := status.Error(codes.FailedPrecondition,
		"The Cloud Firestore API is not available for Firestore in Datastore mode database projects/p/databases/(default).")
	err = translateError(datastoreMode)
	assert.False(t, core.IsKind(err, core.KindMissingIndex))
	assert.Equal(t, core.KindBackendFailure, core.KindOf(err))
	assert.ErrorIs(t, err, datastoreMode)
}

func TestOpen_RequiresProject(t *testing.T) {
	_, err := Open(Config{}, nil)(context.Background())
	assert.Error(t, err)
}

// TestStore_Emulator runs against the Firestore emulator when
// FIRESTORE_EMULATOR_HOST is set.
func TestStore_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	s, err := Open(Config{ProjectID: "docquery-test"}, nil)(ctx)
	require.NoError(t, err)
	defer s.Close()

	coll := "bookings-" + uuid.New().String()
	require.NoError(t, s.Set(ctx, coll, "b1", core.Document{"status": "pending", "n": 2.0}))
	require.NoError(t, s.Set(ctx, coll, "b2", core.Document{"status": "pending", "n": 1.0}))
	require.NoError(t, s.Merge(ctx, coll, "b1", map[string]any{"guest.name": "Ann"}))
	assert.ErrorIs(t, s.Merge(ctx, coll, "ghost", map[string]any{"a": 1}), core.ErrDocumentNotFound)

	got, err := s.Get(ctx, coll, "b1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ann"}, got["guest"])

	missing, err := s.Get(ctx, coll, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dsl := query.NewQueryBuilder().Where("status").Eq("pending").Build()
	cursor, err := s.Query(ctx, coll, &dsl)
	require.NoError(t, err)
	snaps, err := persistence.ReadAll(cursor)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	require.NoError(t, s.Delete(ctx, coll, "b1"))
	gone, err := s.Get(ctx, coll, "b1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
