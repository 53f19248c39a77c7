package reqflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/reqflow"
)

func TestJSONCodecDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    user
		wantErr bool
	}{
		{name: "document", body: `{"id":1,"name":"a"}`, want: user{ID: 1, Name: "a"}},
		{name: "trailing whitespace", body: "{\"id\":1}\n\t ", want: user{ID: 1}},
		{name: "missing fields keep zero value", body: `{}`, want: user{}},
		{name: "trailing garbage", body: `{"id":1,"name":"a"} this is not json`, wantErr: true},
		{name: "second document", body: `{"id":1} {"id":2}`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got user

			err := reqflow.JSONCodec{}.Decode([]byte(tt.body), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONCodecDisallowUnknownFields(t *testing.T) {
	var got user

	err := reqflow.JSONCodec{DisallowUnknownFields: true}.Decode([]byte(`{"id":1,"extra":true}`), &got)

	assert.Error(t, err)
}
