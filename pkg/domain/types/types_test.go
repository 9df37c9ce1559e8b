package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/domain/types"
)

func TestActionType(t *testing.T) {
	for _, at := range types.AllActionTypes() {
		t.Run(at.String(), func(t *testing.T) {
			parsed, err := types.ParseActionType(at.String())
			gt.NoError(t, err)
			gt.Value(t, parsed).Equal(at)
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		_, err := types.ParseActionType("fax")
		gt.Error(t, err)
	})

	t.Run("case sensitive", func(t *testing.T) {
		gt.Bool(t, types.ActionType("SMS").IsValid()).False()
	})
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.Direction
		wantErr bool
	}{
		{name: "empty defaults to inbound", input: "", want: types.DirectionInbound},
		{name: "inbound", input: "inbound", want: types.DirectionInbound},
		{name: "outbound", input: "outbound", want: types.DirectionOutbound},
		{name: "invalid", input: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseDirection(tt.input)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestParseAlertStatus(t *testing.T) {
	for _, s := range []string{"fired", "suppressed", "failed"} {
		got, err := types.ParseAlertStatus(s)
		gt.NoError(t, err)
		gt.Value(t, got.String()).Equal(s)
	}

	_, err := types.ParseAlertStatus("pending")
	gt.Error(t, err)
}
