// deviceclient is a demo RFC 8628 client for exercising the device flow
// against a running grant server: it requests a device code, prints the
// user code, and polls the token endpoint until the flow resolves.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jrsteele09/go-grant-server/internal/config"
	"golang.org/x/oauth2"
)

func main() {
	baseURL := config.GetEnv("BASE_URL", "http://localhost:8080")
	clientID := config.GetEnv("CLIENT_ID", "dev-client")
	clientSecret := config.GetEnv("CLIENT_SECRET", "dev-secret")

	oauthConfig := oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"openid", "profile"},
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: baseURL + "/oauth2/device_authorization",
			TokenURL:      baseURL + "/oauth2/token",
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	deviceAuth, err := oauthConfig.DeviceAuth(ctx)
	if err != nil {
		log.Fatalf("device authorization request failed: %s", err)
	}

	fmt.Printf("Visit %s and enter the code: %s\n", deviceAuth.VerificationURI, deviceAuth.UserCode)
	if deviceAuth.VerificationURIComplete != "" {
		fmt.Printf("Or visit %s directly\n", deviceAuth.VerificationURIComplete)
	}

	tok, err := oauthConfig.DeviceAccessToken(ctx, deviceAuth)
	if err != nil {
		log.Fatalf("device token exchange failed: %s", err)
	}

	fmt.Printf("access token: %s\n", tok.AccessToken)
	if refreshToken := tok.RefreshToken; refreshToken != "" {
		fmt.Printf("refresh token: %s\n", refreshToken)
	}
}
