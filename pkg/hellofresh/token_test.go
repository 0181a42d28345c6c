package hellofresh

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "recipecards/pkg/errors"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "token in script block",
			body: `<html><head><script id="__NEXT_DATA__">{"props":{"auth":{"access_token":"abc.def","token_type":"Bearer"}}}</script></head></html>`,
			want: "abc.def",
		},
		{
			name: "script checked before attribute text",
			body: `<div data-x='"access_token":"from-attr"'></div><script>window.s={"access_token":"from-script"}</script>`,
			want: "from-script",
		},
		{
			name: "falls back to raw body",
			body: `<div data-state='{"access_token":"raw-token"}'></div>`,
			want: "raw-token",
		},
		{
			name:    "marker missing",
			body:    `<html><script>var x = 1;</script></html>`,
			wantErr: errs.ErrCredentialNotFound,
		},
		{
			name:    "empty token",
			body:    `<script>{"access_token":""}</script>`,
			wantErr: errs.ErrCredentialNotFound,
		},
		{
			name:    "unterminated token",
			body:    `"access_token":"abc`,
			wantErr: errs.ErrCredentialNotFound,
		},
		{
			name:    "empty body",
			body:    ``,
			wantErr: errs.ErrCredentialNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractToken([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAcquireCredential(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testSiteURL,
		httpmock.NewStringResponder(200, `<script>{"access_token":"tok-123"}</script>`))

	c := newTestClient(transport)
	cred, err := c.AcquireCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", cred.Value)
	assert.False(t, cred.AcquiredAt.IsZero())
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestAcquireCredentialFailures(t *testing.T) {
	t.Run("non-200 site response", func(t *testing.T) {
		transport := httpmock.NewMockTransport()
		transport.RegisterResponder(http.MethodGet, testSiteURL, httpmock.NewStringResponder(503, "down"))

		_, err := newTestClient(transport).AcquireCredential(context.Background())
		require.Error(t, err)
		assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
		assert.Equal(t, 1, transport.GetTotalCallCount(), "no retry")
	})

	t.Run("markup without token", func(t *testing.T) {
		transport := httpmock.NewMockTransport()
		transport.RegisterResponder(http.MethodGet, testSiteURL, httpmock.NewStringResponder(200, "<html></html>"))

		_, err := newTestClient(transport).AcquireCredential(context.Background())
		assert.ErrorIs(t, err, errs.ErrCredentialNotFound)
	})
}
