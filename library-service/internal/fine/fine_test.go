package fine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name    string
		issue   string
		expiry  string
		now     string
		perDay  int
		want    int
		wantErr error
	}{
		{
			name:   "five days overdue",
			issue:  "2024-01-01T00:00:00Z",
			expiry: "2024-01-10T00:00:00Z",
			now:    "2024-01-15T00:00:00Z",
			perDay: 5,
			want:   25,
		},
		{
			name:   "due today",
			issue:  "2024-01-01T00:00:00Z",
			expiry: "2024-01-10T00:00:00Z",
			now:    "2024-01-10T00:00:00Z",
			perDay: 5,
			want:   0,
		},
		{
			name:   "not yet due",
			issue:  "2024-01-01T00:00:00Z",
			expiry: "2024-01-20T00:00:00Z",
			now:    "2024-01-15T00:00:00Z",
			perDay: 5,
			want:   0,
		},
		{
			name:   "partial day is not charged",
			issue:  "2024-01-01T00:00:00Z",
			expiry: "2024-01-10T00:00:00Z",
			now:    "2024-01-12T23:59:59Z",
			perDay: 5,
			want:   10,
		},
		{
			name:   "custom rate",
			issue:  "2024-01-01T00:00:00Z",
			expiry: "2024-01-10T00:00:00Z",
			now:    "2024-01-13T00:00:00Z",
			perDay: 2,
			want:   6,
		},
		{
			name:   "issue date is ignored beyond the future check",
			issue:  "2024-01-14T00:00:00Z",
			expiry: "2024-01-10T00:00:00Z",
			now:    "2024-01-15T00:00:00Z",
			perDay: 5,
			want:   25,
		},
		{
			name:   "expiry centuries ago",
			issue:  "0001-01-01T00:00:00Z",
			expiry: "0001-01-01T00:00:00Z",
			now:    "2024-01-15T00:00:00Z",
			perDay: 5,
			want:   738899 * 5,
		},
		{
			name:   "sub-second remainder is not a day",
			issue:  "2024-01-01T00:00:00Z",
			expiry: "2024-01-10T00:00:00.7Z",
			now:    "2024-01-11T00:00:00.2Z",
			perDay: 5,
			want:   0,
		},
		{
			name:    "issue date in the future",
			issue:   "2024-02-01T00:00:00Z",
			expiry:  "2024-02-10T00:00:00Z",
			now:     "2024-01-15T00:00:00Z",
			perDay:  5,
			wantErr: ErrIssueInFuture,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Calculate(date(tc.issue), date(tc.expiry), date(tc.now), tc.perDay)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCalculator_Defaults(t *testing.T) {
	now := date("2024-01-15T00:00:00Z")
	c := NewCalculator(0, func() time.Time { return now })
	assert.Equal(t, DefaultPerDay, c.PerDay)

	got, err := c.Fine(date("2024-01-01T00:00:00Z"), date("2024-01-10T00:00:00Z"))
	assert.NoError(t, err)
	assert.Equal(t, 25, got)

	assert.NotNil(t, NewCalculator(5, nil).Now)
}
