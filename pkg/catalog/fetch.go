package catalog

import (
	"context"

	"github.com/avorra/geobridge/pkg/geonode"
)

// FetchAll walks every page of the instance's layer and map lists and
// returns the complete summary set for a snapshot. Duplicate remote
// ids across pages (possible when the server-side set shifts between
// page requests) are collapsed per resource type.
func FetchAll(ctx context.Context, client geonode.Client) ([]geonode.BriefResource, error) {
	var all []geonode.BriefResource

	seen := make(map[string]bool)

	lists := []func(context.Context, geonode.ListParams) (*geonode.ListResult, error){
		client.ListResources,
		client.ListMaps,
	}

	for _, list := range lists {
		page := 1

		for {
			result, err := list(ctx, geonode.ListParams{
				Page:     page,
				PageSize: client.MaxPageSize(),
			})

			if err != nil {
				return nil, err
			}

			for _, r := range result.Resources {
				key := r.Type + "/" + r.ID
				if seen[key] {
					continue
				}
				seen[key] = true
				all = append(all, r)
			}

			if len(result.Resources) == 0 || page >= result.Pagination.TotalPages() {
				break
			}

			page++
		}
	}

	return all, nil
}
