package core

import (
	"testing"
	"time"

	"courtwind/internal/types"
)

func TestValidateStruct_AdviceRequest(t *testing.T) {
	v := NewValidator(testLogger())
	obs := []types.Observation{{
		Timestamp:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		WindSpeed:   2,
		WindGust:    3,
		HumidityPct: 50,
		PressureHPa: 1013,
	}}

	tests := []struct {
		name     string
		req      types.AdviceRequest
		wantCode types.ErrorCode
		field    string
	}{
		{
			name: "valid",
			req:  types.AdviceRequest{LocationID: "court-1", Observations: obs},
		},
		{
			name:     "missing location",
			req:      types.AdviceRequest{Observations: obs},
			wantCode: types.ErrCodeValidationMissingField,
			field:    "location_id",
		},
		{
			name:     "bad horizon",
			req:      types.AdviceRequest{LocationID: "court-1", Observations: obs, Horizons: []int{0}},
			wantCode: types.ErrCodeValidationInvalidBody,
			field:    "horizons[0]",
		},
		{
			name: "negative speed",
			req: types.AdviceRequest{LocationID: "court-1", Observations: []types.Observation{{
				Timestamp: obs[0].Timestamp, WindSpeed: -1, PressureHPa: 1013,
			}}},
			wantCode: types.ErrCodeValidationInvalidBody,
			field:    "observations[0].wind_speed_m_s",
		},
		{
			name: "bad thresholds",
			req: types.AdviceRequest{
				LocationID: "court-1", Observations: obs,
				Thresholds: &types.Thresholds{MedianMax: 0, TailMax: 5},
			},
			wantCode: types.ErrCodeValidationInvalidBody,
			field:    "thresholds.median_max_m_s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if got := types.CodeOf(err); got != tt.wantCode {
				t.Errorf("expected %s, got %s", tt.wantCode, got)
			}
			appErr := err.(*types.AppError)
			fields, _ := appErr.Details["fields"].(map[string]any)
			if _, ok := fields[tt.field]; !ok {
				t.Errorf("expected field %q in details, got %v", tt.field, fields)
			}
		})
	}
}
