package task

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateRequest
		field string
	}{
		{"valid minimal", CreateRequest{OrderItemID: "OI-1", ServiceType: "WCHR"}, ""},
		{"missing order item", CreateRequest{ServiceType: "WCHR"}, "order_item_id"},
		{"blank order item", CreateRequest{OrderItemID: "  ", ServiceType: "WCHR"}, "order_item_id"},
		{"missing service type", CreateRequest{OrderItemID: "OI-1"}, "service_type"},
		{
			"checklist key missing",
			CreateRequest{OrderItemID: "OI-1", ServiceType: "WCHR", Checklist: []ChecklistItemInput{{Key: "a"}, {Title: "x"}}},
			"checklist[1].key",
		},
		{
			"hint not JSON-safe",
			CreateRequest{OrderItemID: "OI-1", ServiceType: "WCHR", CustomerHint: map[string]any{"x": math.Inf(1)}},
			"customer_hint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, IsMalformed(err))
			assert.Equal(t, tt.field, err.(*Error).Field)
		})
	}
}

func TestChecklistDefaults(t *testing.T) {
	assert.Equal(t, ChecklistItem{Key: "a", Title: "Board", Required: true, Done: false},
		ChecklistItemInput{Key: "a", Title: "Board"}.Item())
	assert.Equal(t, ChecklistItem{Key: "a", Title: "Board", Required: false, Done: true},
		ChecklistItemInput{Key: "a", Title: "Board", Required: ptr(false), Done: ptr(true)}.Item())
}

func TestNewTaskNormalizes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.FixedZone("X", 7200))
	sla := time.Date(2025, 6, 1, 14, 0, 0, 999, time.FixedZone("X", 7200))

	req := CreateRequest{
		OrderItemID:  "OI-1",
		ServiceType:  "WCHR",
		ProviderID:   ptr(""),
		Location:     &Location{},
		Flight:       &Flight{},
		CustomerHint: map[string]any{"name": nil},
		SLADueAt:     &sla,
	}

	got := req.NewTask("t1", now)

	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, StatusNew, got.Status)
	assert.Nil(t, got.ProviderID)
	assert.Nil(t, got.Location)
	assert.Nil(t, got.Flight)
	assert.Nil(t, got.CustomerHint)
	assert.Equal(t, []ChecklistItem{}, got.Checklist)
	require.NotNil(t, got.SLADueAt)
	assert.Equal(t, time.UTC, got.SLADueAt.Location())
	assert.Equal(t, 0, got.SLADueAt.Nanosecond())
	assert.Equal(t, 123456000, got.CreatedAt.Nanosecond())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestNewTaskKeepsChecklistOrder(t *testing.T) {
	req := CreateRequest{
		OrderItemID: "OI-1",
		ServiceType: "WCHR",
		Checklist:   []ChecklistItemInput{{Key: "b", Title: "B"}, {Key: "a", Title: "A"}},
	}

	got := req.NewTask("t1", time.Now())
	require.Len(t, got.Checklist, 2)
	assert.Equal(t, "b", got.Checklist[0].Key)
	assert.Equal(t, "a", got.Checklist[1].Key)
}
