package compliance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinicore/monitoring-engine/internal/domain/compliance"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		tally      compliance.Tally
		wantStatus compliance.Status
		wantScore  int
	}{
		{
			name:       "clean tally is fully compliant",
			tally:      compliance.Tally{},
			wantStatus: compliance.StatusCompliant,
			wantScore:  100,
		},
		{
			name:       "single breach forces non-compliant",
			tally:      compliance.Tally{BreachCount: 1},
			wantStatus: compliance.StatusNonCompliant,
			wantScore:  80,
		},
		{
			name:       "many breaches floor at zero",
			tally:      compliance.Tally{BreachCount: 7},
			wantStatus: compliance.StatusNonCompliant,
			wantScore:  0,
		},
		{
			name:       "six unauthorized attempts degrade to warning",
			tally:      compliance.Tally{UnauthorizedAttempts: 6},
			wantStatus: compliance.StatusWarning,
			wantScore:  70,
		},
		{
			name:       "five unauthorized attempts stay compliant",
			tally:      compliance.Tally{UnauthorizedAttempts: 5},
			wantStatus: compliance.StatusCompliant,
			wantScore:  100,
		},
		{
			name:       "high-risk access volume degrades to warning",
			tally:      compliance.Tally{HighRiskAccesses: 11},
			wantStatus: compliance.StatusWarning,
			wantScore:  100,
		},
		{
			name:       "warning score never drops below 70",
			tally:      compliance.Tally{UnauthorizedAttempts: 20},
			wantStatus: compliance.StatusWarning,
			wantScore:  70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, score := compliance.Score(tt.tally)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantScore, score)
		})
	}
}

func TestSubScores(t *testing.T) {
	pdpa, access, audit := compliance.SubScores(compliance.Tally{
		BreachCount:          1,
		MissingConsent:       2,
		UnauthorizedAttempts: 4,
		HighRiskAccesses:     5,
		AuditEvents:          10,
		AuditFailures:        3,
	})

	assert.Equal(t, 60, pdpa)
	assert.Equal(t, 70, access)
	assert.Equal(t, 70, audit)

	pdpa, access, audit = compliance.SubScores(compliance.Tally{})
	assert.Equal(t, 100, pdpa)
	assert.Equal(t, 100, access)
	assert.Equal(t, 100, audit, "no audit events scores a clean 100")
}

func TestClassifyCrossBorder(t *testing.T) {
	assert.Equal(t, compliance.CrossBorderCompliant, compliance.ClassifyCrossBorder(0))
	assert.Equal(t, compliance.CrossBorderWarning, compliance.ClassifyCrossBorder(1))
	assert.Equal(t, compliance.CrossBorderWarning, compliance.ClassifyCrossBorder(4))
	assert.Equal(t, compliance.CrossBorderViolation, compliance.ClassifyCrossBorder(5))
	assert.Equal(t, compliance.CrossBorderViolation, compliance.ClassifyCrossBorder(12))
}

func TestFrameworks(t *testing.T) {
	results := compliance.Frameworks(compliance.Tally{UnauthorizedAttempts: 6, BreachCount: 1}, 80)

	byReq := map[string]compliance.FrameworkResult{}
	for _, r := range results {
		byReq[r.Requirement] = r
	}

	assert.False(t, byReq["compliance rate at or above 95"].Passed)
	assert.False(t, byReq["zero unresolved data breaches"].Passed)
	assert.False(t, byReq["unauthorized access attempts at or below 5"].Passed)

	results = compliance.Frameworks(compliance.Tally{}, 100)
	for _, r := range results {
		assert.True(t, r.Passed, r.Requirement)
	}
}

func TestRecommend(t *testing.T) {
	recs := compliance.Recommend(compliance.Tally{
		BreachCount:          1,
		ConsentObtained:      10,
		UnauthorizedAttempts: 2,
	})
	assert.Len(t, recs, 3)

	recs = compliance.Recommend(compliance.Tally{ConsentObtained: 100})
	assert.Empty(t, recs)
}
