package botserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// EnsureClients registers every name → token pair. A token already stored is
// left alone; a known name with a new token gets that token; anything else is
// created.
func EnsureClients(ctx context.Context, store Store, tokens map[string]string, log zerolog.Logger) error {
	for name, token := range tokens {
		if _, err := store.ClientByToken(ctx, token); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("lookup client %q: %w", name, err)
		}

		existing, err := store.ClientByName(ctx, name)
		switch {
		case err == nil:
			if err := store.SetClientToken(ctx, existing.ID, token); err != nil {
				return fmt.Errorf("rotate token for %q: %w", name, err)
			}
			log.Info().Str("client", name).Msg("client token rotated")
		case errors.Is(err, ErrNotFound):
			if _, err := store.CreateClient(ctx, name, token); err != nil {
				return err
			}
			log.Info().Str("client", name).Msg("client registered")
		default:
			return fmt.Errorf("lookup client %q: %w", name, err)
		}
	}
	return nil
}
