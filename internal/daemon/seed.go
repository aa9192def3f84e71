package daemon

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

// seed creates an account for every member of the organization's
// designated group and promotes the configured administrator. Members
// that already exist are left untouched; the promotion is applied only
// when the flag actually changes.
func seed(ctx context.Context, provider plugin.IdentityProvider, users plugin.UserRoleStore) error {
	members, err := provider.GroupMembers(ctx)
	if err != nil {
		return err
	}

	created := 0

	for _, member := range members {
		added, err := users.Add(ctx, member)
		if err != nil {
			return err
		}

		if added {
			created++
		}
	}

	adminID := provider.AdministratorID()

	exists, err := users.Exists(ctx, adminID)
	if err != nil {
		return err
	}

	if !exists {
		log.Warn().Str("login", adminID).Msg("administrator not among group members, no admin seeded")
	} else {
		promoted, err := users.SetAdmin(ctx, adminID)
		if err != nil {
			return err
		}

		if promoted {
			log.Info().Str("login", adminID).Msg("administrator promoted")
		}
	}

	log.Info().
		Int("members", len(members)).
		Int("created", created).
		Msg("accounts seeded from identity provider")

	return nil
}
