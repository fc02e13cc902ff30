package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authority/cmd/identity"
)

func TestStatus_Table(t *testing.T) {
	t.Parallel()

	cases := map[Kind]int{
		KindUnauthorized: 401,
		KindForbidden:    403,
		KindNotFound:     404,
		KindValidation:   422,
		KindInternal:     500,
		Kind(42):         500,
	}
	for k, want := range cases {
		assert.Equal(t, want, Status(k), "kind %v", k)
	}
}

func TestFrom(t *testing.T) {
	t.Parallel()

	assert.Nil(t, From(nil))

	u := Unauthorized("nope")
	assert.Same(t, u, From(fmt.Errorf("wrapped: %w", u)))

	nf := From(identity.NotFoundError{Op: "identity.FindByID", Resource: "credential"})
	assert.Equal(t, KindNotFound, nf.Kind)
	assert.Equal(t, MsgNotFound, nf.Message)

	in := From(errors.New("boom"))
	assert.Equal(t, KindInternal, in.Kind)
	assert.EqualError(t, in.Err, "boom")

	assert.True(t, Is(identity.ConflictError{Field: "name"}, KindInternal))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		want   map[string]any
	}{
		{
			name:   "unauthorized message",
			err:    Unauthorized(MsgCredentialsDiffer),
			status: http.StatusUnauthorized,
			want:   map[string]any{"error": MsgCredentialsDiffer},
		},
		{
			name:   "validation fields",
			err:    Validation(map[string][]string{"name": {MsgNameTaken}}),
			status: http.StatusUnprocessableEntity,
			want:   map[string]any{"error": map[string]any{"name": []any{MsgNameTaken}}},
		},
		{
			name:   "internal hides cause",
			err:    Internal(errors.New("pq: secret detail")),
			status: http.StatusInternalServerError,
			want:   map[string]any{"error": "Internal Server Error"},
		},
		{
			name:   "plain error is internal",
			err:    errors.New("whatever"),
			status: http.StatusInternalServerError,
			want:   map[string]any{"error": "Internal Server Error"},
		},
		{
			name:   "not found",
			err:    NotFound(),
			status: http.StatusNotFound,
			want:   map[string]any{"error": "Entity not found"},
		},
		{
			name:   "forbidden without message",
			err:    &Error{Kind: KindForbidden},
			status: http.StatusForbidden,
			want:   map[string]any{"error": "Forbidden"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			Write(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.want, decode(t, rec))
		})
	}
}
