// SigV4 request signing as a beforeApiRequest hook.
//
// DESIGN: Signing is a cross-cutting concern, so it attaches through the
// hook registry instead of living inside the client. Credentials come from
// the standard AWS chain (environment, shared credentials file, IAM role)
// via aws-sdk-go-v2/config. An unconfigured signer registers fine and does
// nothing, so wiring it unconditionally is safe.
package client

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"

	"github.com/hookline/fetch-relay/internal/hooks"
)

// Signer signs outgoing requests with AWS SigV4.
type Signer struct {
	credentials aws.CredentialsProvider
	region      string
	service     string
	signer      *v4.Signer
	configured  bool
}

// NewSigner creates a Signer for the given AWS service, loading
// credentials from the default chain. An empty region falls back to the
// AWS_REGION/AWS_DEFAULT_REGION environment, then us-east-1. Returns a
// non-nil signer even when credentials are unavailable; IsConfigured
// reports the difference.
func NewSigner(service, region string) *Signer {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	s := &Signer{
		region:  region,
		service: service,
		signer:  v4.NewSigner(),
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load AWS config for request signer")
		return s
	}

	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		log.Debug().Err(err).Msg("no AWS credentials available for request signer")
		return s
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		log.Debug().Msg("AWS credentials are empty, request signer not configured")
		return s
	}

	s.credentials = cfg.Credentials
	s.configured = true

	log.Info().
		Str("region", region).
		Str("service", service).
		Msg("request signer initialized")

	return s
}

// NewSignerWithCredentials creates a Signer with explicit credentials.
func NewSignerWithCredentials(service, region string, creds aws.CredentialsProvider) *Signer {
	return &Signer{
		credentials: creds,
		region:      region,
		service:     service,
		signer:      v4.NewSigner(),
		configured:  creds != nil,
	}
}

// IsConfigured returns true when credentials are available for signing.
func (s *Signer) IsConfigured() bool { return s.configured }

// Region returns the configured AWS region.
func (s *Signer) Region() string { return s.region }

// Handler returns the hook handler. Register it on
// hooks.PointBeforeRequest; payloads other than *hooks.RequestPayload are
// ignored.
func (s *Signer) Handler() hooks.Handler {
	return func(ctx context.Context, payload any) error {
		p, ok := payload.(*hooks.RequestPayload)
		if !ok || p.Request == nil || !s.configured {
			return nil
		}

		creds, err := s.credentials.Retrieve(ctx)
		if err != nil {
			return fmt.Errorf("retrieve AWS credentials: %w", err)
		}

		// GET requests carry no body.
		payloadHash := fmt.Sprintf("%x", sha256.Sum256(nil))
		if err := s.signer.SignHTTP(ctx, creds, p.Request, payloadHash, s.service, s.region, time.Now()); err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
		return nil
	}
}
