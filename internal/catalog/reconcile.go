package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/musiccy/music-svc/internal/domain"
	"github.com/musiccy/music-svc/internal/repository"
)

// Reconciler keeps per-(song, artist) rating attribution consistent when
// a song's artist-association set changes. An artist named in both the
// add and delete lists cancels out and is not processed at all.
type Reconciler struct{}

// Reconcile applies the association changes for song. Removed artists
// lose the song's current (rating_value, rating_count) from their
// aggregate; added artists retroactively gain it. Runs before the song's
// own field update, inside the same transaction, so partial association
// changes are never visible.
func (Reconciler) Reconcile(ctx context.Context, repos *repository.Repository, song domain.Song, toAdd, toDelete []string) error {
	effectiveAdd, effectiveDelete := effectiveSets(toAdd, toDelete)

	for _, aid := range effectiveDelete {
		if err := repos.SongArtists.Delete(ctx, song.SID, aid); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: artist %s is not associated with song %s", ErrValidation, aid, song.SID)
			}
			return fmt.Errorf("delete association %s: %w", aid, err)
		}
		if err := repos.Artists.AddAggregate(ctx, aid, -song.RatingValue, -song.RatingCount); err != nil {
			return fmt.Errorf("withdraw credit from artist %s: %w", aid, err)
		}
	}

	for _, aid := range effectiveAdd {
		if _, err := repos.Artists.GetByAID(ctx, aid); err != nil {
			return fmt.Errorf("artist %s: %w", aid, err)
		}
		if err := repos.SongArtists.Create(ctx, song.SID, aid); err != nil {
			return fmt.Errorf("create association %s: %w", aid, err)
		}
		if err := repos.Artists.AddAggregate(ctx, aid, song.RatingValue, song.RatingCount); err != nil {
			return fmt.Errorf("credit artist %s: %w", aid, err)
		}
	}
	return nil
}

// effectiveSets dedupes both lists and drops any id present in both:
// mutual cancellation, not an error. Results are sorted so association
// writes hit rows in a stable order.
func effectiveSets(toAdd, toDelete []string) (add, del []string) {
	addSet := make(map[string]struct{}, len(toAdd))
	for _, aid := range toAdd {
		addSet[aid] = struct{}{}
	}
	delSet := make(map[string]struct{}, len(toDelete))
	for _, aid := range toDelete {
		delSet[aid] = struct{}{}
	}

	for aid := range addSet {
		if _, both := delSet[aid]; !both {
			add = append(add, aid)
		}
	}
	for aid := range delSet {
		if _, both := addSet[aid]; !both {
			del = append(del, aid)
		}
	}
	sort.Strings(add)
	sort.Strings(del)
	return add, del
}
