package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusRejected, true},
		{StatusInProgress, StatusResolved, true},
		{StatusPending, StatusResolved, false},
		{StatusInProgress, StatusRejected, false},
		{StatusInProgress, StatusPending, false},
		{StatusResolved, StatusInProgress, false},
		{StatusRejected, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDepartmentCode(t *testing.T) {
	assert.Equal(t, "WR", DepartmentCode("Water Resources"))
	assert.Equal(t, "WR", DepartmentCode("  water resources "))
	assert.Equal(t, "GC", DepartmentCode("Ministry of Magic"))
	assert.Len(t, DepartmentNames(), 10)
	assert.True(t, IsKnownDepartment("Police Department"))
	assert.False(t, IsKnownDepartment(""))
}
