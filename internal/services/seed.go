package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/platformbuilds/mirador-dashboards/internal/datasource"
	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/repo"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

// SeedReport counts what ApplySeed created.
type SeedReport struct {
	Entities int
	Rows     int
	Menus    int
	Blocks   int
}

// ApplySeed imports a seed document. Entities that already exist keep their
// records and menus whose name is taken are skipped, so a restart against a
// persistent store does not duplicate data.
func ApplySeed(
	ctx context.Context,
	seed *repo.Seed,
	store datasource.Store,
	menus *MenuManager,
	blocks *BlockManager,
	owner models.Identity,
	log logger.Logger,
) (SeedReport, error) {
	var rep SeedReport

	for _, e := range seed.Entities {
		_, err := store.ResolveFieldMeta(ctx, e.Name, datasource.IDField)
		existed := err == nil
		if err != nil && !errors.Is(err, models.ErrResolution) {
			return rep, err
		}
		if err := store.DefineEntity(ctx, e.EntityDef); err != nil {
			return rep, fmt.Errorf("failed to define entity %s: %w", e.Name, err)
		}
		rep.Entities++
		if existed {
			log.Debug("Seed entity exists, rows skipped", "entity", e.Name)
			continue
		}
		ids, err := store.InsertRows(ctx, e.Name, e.DataRows())
		if err != nil {
			return rep, fmt.Errorf("failed to load rows of %s: %w", e.Name, err)
		}
		rep.Rows += len(ids)
	}

	existing, err := menus.List(ctx)
	if err != nil {
		return rep, err
	}
	taken := make(map[string]bool, len(existing))
	for _, m := range existing {
		taken[m.Name] = true
	}

	for _, sm := range seed.Menus {
		if taken[sm.Name] {
			log.Debug("Seed menu exists, skipped", "menu", sm.Name)
			continue
		}
		menu, err := menus.Create(ctx, &models.DashboardMenu{
			Name:     sm.Name,
			Sequence: sm.Sequence,
			GroupIDs: sm.GroupIDs,
		})
		if err != nil {
			return rep, fmt.Errorf("failed to seed menu %s: %w", sm.Name, err)
		}
		rep.Menus++
		for _, b := range sm.Blocks {
			if b == nil {
				continue
			}
			in := b.Clone()
			in.ClientActionID = menu.ClientActionID
			if _, err := blocks.Create(ctx, owner, in); err != nil {
				return rep, fmt.Errorf("failed to seed block %q of menu %s: %w", b.Name, sm.Name, err)
			}
			rep.Blocks++
		}
	}

	log.Info("Seed applied", "entities", rep.Entities, "rows", rep.Rows, "menus", rep.Menus, "blocks", rep.Blocks)
	return rep, nil
}
