package client_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/fetch-relay/internal/client"
	"github.com/hookline/fetch-relay/internal/hooks"
)

func staticCreds() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
		}, nil
	})
}

func TestSigner_SignsOutgoingRequest(t *testing.T) {
	s := client.NewSignerWithCredentials("execute-api", "us-east-1", staticCreds())
	require.True(t, s.IsConfigured())

	req, err := http.NewRequest(http.MethodGet, "https://api.example.test/items", nil)
	require.NoError(t, err)

	handler := s.Handler()
	require.NoError(t, handler(context.Background(), &hooks.RequestPayload{
		RequestID: "req-1",
		Key:       "/items",
		Attempt:   1,
		Request:   req,
	}))

	auth := req.Header.Get("Authorization")
	assert.Contains(t, auth, "AWS4-HMAC-SHA256")
	assert.Contains(t, auth, "AKIDEXAMPLE")
	assert.Contains(t, auth, "us-east-1/execute-api")
	assert.NotEmpty(t, req.Header.Get("X-Amz-Date"))
}

func TestSigner_UnconfiguredIsNoOp(t *testing.T) {
	s := client.NewSignerWithCredentials("execute-api", "us-east-1", nil)
	require.False(t, s.IsConfigured())

	req, err := http.NewRequest(http.MethodGet, "https://api.example.test/items", nil)
	require.NoError(t, err)

	require.NoError(t, s.Handler()(context.Background(), &hooks.RequestPayload{Request: req}))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestSigner_IgnoresForeignPayloads(t *testing.T) {
	s := client.NewSignerWithCredentials("execute-api", "us-east-1", staticCreds())

	assert.NoError(t, s.Handler()(context.Background(), "not a request payload"))
	assert.NoError(t, s.Handler()(context.Background(), &hooks.RequestPayload{}))
}
