package cloud

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/django-cloud/dcd/cli/util"
)

// CloudPlatformScope is the OAuth scope required by every API the tool calls.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// AuthClient manages the gcloud account and the application default
// credentials the API clients are built from.
type AuthClient struct {
	gcloud string
}

// NewAuthClient creates an AuthClient around the given gcloud executable.
func NewAuthClient(gcloudExecutable string) *AuthClient {
	if gcloudExecutable == "" {
		gcloudExecutable = "gcloud"
	}

	return &AuthClient{gcloud: gcloudExecutable}
}

// ActiveAccount returns the account gcloud is currently authorized with, or
// an empty string when there is none.
func (c *AuthClient) ActiveAccount() string {
	output, err := util.RunCommandAndGetOutput(c.gcloud, "auth", "list",
		"--filter=status:ACTIVE", "--format=value(account)")
	if err != nil {
		return ""
	}

	account, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	return account
}

// Login runs the interactive gcloud account authorization.
func (c *AuthClient) Login() error {
	return c.runInteractive("auth", "login")
}

// ApplicationDefaultLogin mints application default credentials through the
// interactive gcloud flow.
func (c *AuthClient) ApplicationDefaultLogin() error {
	return c.runInteractive("auth", "application-default", "login")
}

func (c *AuthClient) runInteractive(args ...string) error {
	cmd := exec.Command(c.gcloud, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %s", c.gcloud,
			strings.Join(args, " "), err)
	}

	return nil
}

// HasDefaultCredentials reports whether application default credentials can
// be loaded.
func (c *AuthClient) HasDefaultCredentials(ctx context.Context) bool {
	_, err := google.FindDefaultCredentials(ctx, CloudPlatformScope)
	return err == nil
}

// ClientOptions loads the application default credentials and returns the
// options every API client is constructed with.
func (c *AuthClient) ClientOptions(ctx context.Context) ([]option.ClientOption, error) {
	creds, err := google.FindDefaultCredentials(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("application default credentials are not "+
			"available, run %q first: %s",
			c.gcloud+" auth application-default login", err)
	}

	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

// AccessToken returns a fresh OAuth access token of the application default
// credentials. The container registry push uses it as a password.
func (c *AuthClient) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	creds, err := google.FindDefaultCredentials(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("application default credentials are not "+
			"available: %s", err)
	}

	token, err := creds.TokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to mint an access token: %s", err)
	}

	return token, nil
}
