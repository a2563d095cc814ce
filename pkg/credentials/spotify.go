package credentials

import (
	"context"
	"time"

	"github.com/pkg/errors"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// SpotifyAcquirer returns an AcquireFunc performing the Spotify
// client-credentials grant.
func SpotifyAcquirer(clientID, clientSecret string) AcquireFunc {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return func(ctx context.Context) (Token, error) {
		tok, err := cfg.Token(ctx)
		if err != nil {
			return Token{}, errors.Wrap(err, "spotify client credentials grant")
		}
		expires := tok.Expiry
		if expires.IsZero() {
			expires = time.Now().Add(time.Hour)
		}
		return Token{Value: tok.AccessToken, ExpiresAt: expires}, nil
	}
}
