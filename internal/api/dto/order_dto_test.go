package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Amount
		wantErr bool
	}{
		{"字符串", `{"subtotal_price":"12.34"}`, "12.34", false},
		{"数字", `{"subtotal_price":12.34}`, "12.34", false},
		{"整数", `{"subtotal_price":100}`, "100", false},
		{"null", `{"subtotal_price":null}`, "", false},
		{"缺省", `{}`, "", false},
		{"布尔", `{"subtotal_price":true}`, "", true},
		{"对象", `{"subtotal_price":{}}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req WebhookRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.SubtotalPrice)
		})
	}
}
