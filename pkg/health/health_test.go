package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fixed(status Status, msg string) Check {
	return func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: status, Message: msg}
	}
}

func TestRunAllUp(t *testing.T) {
	c := NewChecker()
	c.Register("manifest", fixed(StatusUp, ""))
	c.Register("segment 0", fixed(StatusUp, "2 documents"))

	r := c.Run(context.Background())
	assert.Equal(t, StatusUp, r.Status)
	assert.True(t, r.Healthy())
	assert.Equal(t, []string{"manifest", "segment 0"}, r.Names())
	assert.NotEmpty(t, r.Components["segment 0"].Latency)
	assert.NotEmpty(t, r.Timestamp)
}

func TestRunWorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"degraded", []Status{StatusUp, StatusDegraded}, StatusDegraded},
		{"down beats degraded", []Status{StatusDegraded, StatusDown, StatusUp}, StatusDown},
		{"empty", nil, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, s := range tt.statuses {
				c.Register(string(rune('a'+i)), fixed(s, ""))
			}
			r := c.Run(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.Len(t, r.Components, len(tt.statuses))
		})
	}
}

func TestRegisterReplaces(t *testing.T) {
	c := NewChecker()
	c.Register("x", fixed(StatusDown, "broken"))
	c.Register("x", fixed(StatusUp, ""))
	assert.True(t, c.Run(context.Background()).Healthy())
}
