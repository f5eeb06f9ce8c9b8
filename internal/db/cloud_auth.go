package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/geoload/pkg/geoload"
)

const (
	// entraPostgresScope is the Entra ID resource scope for Azure Database for PostgreSQL.
	entraPostgresScope = "https://ossrdbms-aad.database.windows.net/.default"

	rdsTokenLifetime = 15 * time.Minute

	// A load that starts with less than this left on its token may see
	// the token expire before the insert transaction commits.
	tokenExpiryWarning = 5 * time.Minute
)

// TokenProvider issues the short-lived password used to log in to a
// cloud-hosted PostgreSQL.
type TokenProvider interface {
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)
	// String names the credential source without secrets.
	String() string
}

type rdsTokenProvider struct {
	endpoint string
	region   string
	username string
}

func newRDSTokenProvider(cfg *geoload.ConnectionConfig) (*rdsTokenProvider, error) {
	if cfg.AWSRegion == "" {
		return nil, fmt.Errorf("AWS IAM auth requires --aws-region or AWS_REGION: %w", geoload.ErrInvalidConfig)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("AWS IAM auth requires the database user (-U): %w", geoload.ErrInvalidConfig)
	}
	return &rdsTokenProvider{
		endpoint: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		region:   cfg.AWSRegion,
		username: cfg.Username,
	}, nil
}

func (p *rdsTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("loading AWS credentials: %w", err)
	}
	token, err := auth.BuildAuthToken(ctx, p.endpoint, p.region, p.username, awsCfg.Credentials)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing RDS auth token for %s: %w", p.endpoint, err)
	}
	return token, time.Now().Add(rdsTokenLifetime), nil
}

func (p *rdsTokenProvider) String() string {
	return fmt.Sprintf("rds-iam %s@%s (%s)", p.username, p.endpoint, p.region)
}

// entraTokenProvider wraps whichever azidentity credential the
// configuration selects.
type entraTokenProvider struct {
	credential azcore.TokenCredential
	source     string
}

// newEntraTokenProvider uses a client secret credential when tenant, client
// and secret are all known, and the DefaultAzureCredential chain otherwise.
func newEntraTokenProvider(cfg *geoload.ConnectionConfig) (*entraTokenProvider, error) {
	if cfg.AzureClientSecret != "" && (cfg.AzureTenantID == "" || cfg.AzureClientID == "") {
		return nil, fmt.Errorf("AZURE_CLIENT_SECRET needs --azure-tenant-id and --azure-client-id: %w", geoload.ErrInvalidConfig)
	}

	if cfg.AzureClientSecret != "" {
		cred, err := azidentity.NewClientSecretCredential(cfg.AzureTenantID, cfg.AzureClientID, cfg.AzureClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("creating Azure service principal credential: %w", err)
		}
		return &entraTokenProvider{
			credential: cred,
			source:     fmt.Sprintf("service principal %s (tenant %s)", cfg.AzureClientID, cfg.AzureTenantID),
		}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		TenantID: cfg.AzureTenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Azure default credential: %w", err)
	}
	return &entraTokenProvider{credential: cred, source: "default credential chain"}, nil
}

func (p *entraTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	tok, err := p.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{entraPostgresScope}})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("entra id %s: %w", p.source, err)
	}
	return tok.Token, tok.ExpiresOn, nil
}

func (p *entraTokenProvider) String() string {
	return "entra-id " + p.source
}

// TokenConnector logs in with a token from its provider in place of a
// password. The token is fetched once per Connect.
type TokenConnector struct {
	config   *geoload.ConnectionConfig
	provider TokenProvider
	label    string
}

// NewTokenConnector returns a connector that authenticates with tokens
// from provider. label appears in errors and warnings, e.g. "AWS IAM".
func NewTokenConnector(config *geoload.ConnectionConfig, provider TokenProvider, label string) *TokenConnector {
	return &TokenConnector{config: config, provider: provider, label: label}
}

func (c *TokenConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	token, expiresOn, err := c.provider.GetToken(ctx)
	if err != nil {
		return nil, &geoload.ConnectionError{Err: fmt.Errorf("failed to acquire %s token: %w", c.label, err)}
	}

	if left := time.Until(expiresOn); left < tokenExpiryWarning {
		fmt.Fprintf(os.Stderr, "Warning: %s token expires in %v\n", c.label, left.Round(time.Second))
	}

	withToken := *c.config
	withToken.Password = token
	return openPool(ctx, c.config, BuildConnectionString(&withToken))
}
