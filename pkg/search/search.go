// Package search translates user filters into dialect query
// parameters and paginates results. Filters the target API
// generation cannot express are dropped with a recorded warning
// instead of failing the query.
package search

import (
	"context"
	"fmt"

	"github.com/avorra/geobridge/pkg/geonode"
	"github.com/avorra/geobridge/pkg/logger"
)

// Query is one page worth of search criteria. Type selects the
// resource list to search; empty means layers.
type Query struct {
	Type     string        `json:"type,omitempty"`
	Keyword  string        `json:"keyword,omitempty"`
	Category string        `json:"category,omitempty"`
	Bbox     *geonode.BBox `json:"bbox,omitempty"`
	Access   string        `json:"access,omitempty"`

	OrderBy string `json:"order_by,omitempty"`
	Reverse bool   `json:"reverse,omitempty"`

	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Page is one page of results plus the continuation cursor.
type Page struct {
	Resources  []geonode.BriefResource `json:"resources"`
	Pagination geonode.Pagination      `json:"pagination"`

	// NextPage is the continuation cursor; zero means end of results.
	NextPage int `json:"next_page,omitempty"`

	// Warnings lists filters that were dropped because the instance's
	// API generation does not support them.
	Warnings []string `json:"warnings,omitempty"`
}

type Engine struct {
	log *logger.Logger
}

func NewEngine(log *logger.Logger) *Engine {
	return &Engine{log: log.With("component", "search")}
}

// Search runs one page of the query against the given client.
func (e *Engine) Search(ctx context.Context, client geonode.Client, q Query) (*Page, error) {
	list := client.ListResources

	switch q.Type {
	case "", geonode.ResourceTypeLayer:
	case geonode.ResourceTypeMap:
		list = client.ListMaps
	default:
		return nil, fmt.Errorf("unknown resource type %q", q.Type)
	}

	params, warnings := e.translate(client, q)

	result, err := list(ctx, params)

	if err != nil {
		return nil, err
	}

	page := &Page{
		Resources:  result.Resources,
		Pagination: result.Pagination,
		Warnings:   warnings,
	}

	if result.Pagination.Page < result.Pagination.TotalPages() {
		page.NextPage = result.Pagination.Page + 1
	}

	return page, nil
}

// translate builds dialect parameters, stripping unsupported filters.
// The page cursor only moves forward and the page size is clamped to
// the instance's advertised maximum.
func (e *Engine) translate(client geonode.Client, q Query) (geonode.ListParams, []string) {
	var warnings []string

	drop := func(filter string) {
		w := fmt.Sprintf("filter %q is not supported by the %s API and was ignored", filter, client.APIVersion())
		warnings = append(warnings, w)
		e.log.Warn("dropping unsupported search filter",
			"filter", filter,
			"api_version", client.APIVersion(),
			"base_url", client.BaseURL(),
		)
	}

	params := geonode.ListParams{
		OrderBy: q.OrderBy,
		Reverse: q.Reverse,
	}

	if q.Keyword != "" {
		if client.Supports(geonode.CapFilterKeyword) {
			params.Keyword = q.Keyword
		} else {
			drop("keyword")
		}
	}

	if q.Category != "" {
		if client.Supports(geonode.CapFilterCategory) {
			params.Category = q.Category
		} else {
			drop("category")
		}
	}

	if q.Bbox != nil {
		if client.Supports(geonode.CapFilterBbox) {
			params.Bbox = q.Bbox
		} else {
			drop("bbox")
		}
	}

	if q.Access != "" {
		if client.Supports(geonode.CapFilterAccess) {
			params.Access = q.Access
		} else {
			drop("access")
		}
	}

	params.Page = q.Page
	if params.Page < 1 {
		params.Page = 1
	}

	params.PageSize = q.PageSize
	if params.PageSize < 1 {
		params.PageSize = 10
	}
	if max := client.MaxPageSize(); params.PageSize > max {
		params.PageSize = max
	}

	return params, warnings
}
