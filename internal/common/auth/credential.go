// internal/common/auth/credential.go
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"legal-rag-functions/internal/common/config"
	"legal-rag-functions/internal/common/errors"
)

// CognitiveServicesScope is the token scope for Azure OpenAI when no key is configured.
const CognitiveServicesScope = "https://cognitiveservices.azure.com/.default"

// NewCredential resolves the identity used for every Azure backend. A configured
// managed identity client id wins; otherwise the developer credential chain is used.
func NewCredential(cfg config.IdentityConfig) (azcore.TokenCredential, error) {
	if cfg.ManagedIdentityClientID != "" {
		cred, err := azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.ManagedIdentityClientID),
		})
		if err != nil {
			return nil, errors.NewAuthenticationError("managed identity", err)
		}
		return cred, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, errors.NewAuthenticationError("developer credential", err)
	}
	return cred, nil
}

// Unavailable returns a credential that fails every token request with cause.
// The host keeps serving so that affected calls answer 500 instead of crashing.
func Unavailable(cause error) azcore.TokenCredential {
	return &unavailableCredential{cause: cause}
}

type unavailableCredential struct {
	cause error
}

// UnavailableError is returned by credentials built with Unavailable.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("credential unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

func (c *unavailableCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{}, &UnavailableError{Cause: c.cause}
}

// IsAuthError reports whether err is a credential or authorization failure.
// Such failures are never retried.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var unavailable *UnavailableError
	if stderrors.As(err, &unavailable) {
		return true
	}

	var authFailed *azidentity.AuthenticationFailedError
	if stderrors.As(err, &authFailed) {
		return true
	}

	var respErr *azcore.ResponseError
	if stderrors.As(err, &respErr) {
		return IsAuthStatus(respErr.StatusCode)
	}

	return errors.HasCode(err, errors.ErrCodeAuthenticationFailed)
}

// IsAuthStatus reports whether an HTTP status signals rejected credentials.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
