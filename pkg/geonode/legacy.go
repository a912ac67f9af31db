package geonode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// legacyClient speaks the tastypie-based API of GeoNode 2.x. The
// legacy generation is read-only from the bridge's point of view:
// keyword and category filters work, everything else degrades.
type legacyClient struct {
	doer *doer
}

var legacyCapabilities = []Capability{
	CapFilterKeyword,
	CapFilterCategory,
	CapDeleteResource,
}

func (c *legacyClient) BaseURL() string {
	return c.doer.baseURL
}

func (c *legacyClient) APIVersion() string {
	return APIVersionLegacy
}

func (c *legacyClient) Capabilities() []Capability {
	return legacyCapabilities
}

func (c *legacyClient) Supports(cap Capability) bool {
	return supports(legacyCapabilities, cap)
}

func (c *legacyClient) MaxPageSize() int {
	return legacyMaxPageSize
}

// Wire types for the tastypie list and detail documents. The legacy
// API serves bbox ordinates as decimal strings.

type legacyLayer struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Abstract    string         `json:"abstract"`
	DetailURL   string         `json:"detail_url"`
	OwnerName   string         `json:"owner_name"`
	IsPublished bool           `json:"is_published"`
	BboxX0      string         `json:"bbox_x0"`
	BboxX1      string         `json:"bbox_x1"`
	BboxY0      string         `json:"bbox_y0"`
	BboxY1      string         `json:"bbox_y1"`
	Keywords    []string       `json:"keywords"`
	Category    string         `json:"category__gn_description"`
	StoreType   string         `json:"storeType"`
	DefaultSLD  string         `json:"default_style_url"`
	Styles      []legacyStyle  `json:"styles"`
}

type legacyStyle struct {
	Name   string `json:"name"`
	SLDURL string `json:"sld_url"`
}

type legacyMeta struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalCount int `json:"total_count"`
}

type legacyListResponse struct {
	Meta    legacyMeta    `json:"meta"`
	Objects []legacyLayer `json:"objects"`
}

// legacyListQuery serializes list parameters into the tastypie
// limit/offset form; shared by the layer and map list endpoints.
func legacyListQuery(p ListParams) (url.Values, int) {
	page := p.Page
	if page < 1 {
		page = 1
	}

	pageSize := p.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa((page-1)*pageSize))

	if p.Keyword != "" {
		q.Set("title__icontains", p.Keyword)
	}
	if p.Category != "" {
		q.Set("category__identifier", p.Category)
	}
	if p.OrderBy != "" {
		order := p.OrderBy
		if p.Reverse {
			order = "-" + order
		}
		q.Set("order_by", order)
	}

	return q, pageSize
}

func legacyPagination(meta legacyMeta, fallbackSize int) Pagination {
	size := meta.Limit
	if size <= 0 {
		size = fallbackSize
	}

	return Pagination{
		Page:     meta.Offset/size + 1,
		PageSize: size,
		Total:    meta.TotalCount,
	}
}

func (c *legacyClient) ListResources(ctx context.Context, p ListParams) (*ListResult, error) {
	q, pageSize := legacyListQuery(p)

	var resp legacyListResponse

	err := c.doer.getJSON(ctx, c.doer.baseURL+"/api/layers/?"+q.Encode(), &resp)

	if err != nil {
		return nil, err
	}

	briefs := make([]BriefResource, len(resp.Objects))
	for i, obj := range resp.Objects {
		briefs[i] = obj.brief()
	}

	return &ListResult{
		Resources:  briefs,
		Pagination: legacyPagination(resp.Meta, pageSize),
	}, nil
}

type legacyMap struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Abstract    string `json:"abstract"`
	DetailURL   string `json:"detail_url"`
	OwnerName   string `json:"owner_name"`
	IsPublished bool   `json:"is_published"`
	BboxX0      string `json:"bbox_x0"`
	BboxX1      string `json:"bbox_x1"`
	BboxY0      string `json:"bbox_y0"`
	BboxY1      string `json:"bbox_y1"`
}

type legacyMapListResponse struct {
	Meta    legacyMeta  `json:"meta"`
	Objects []legacyMap `json:"objects"`
}

func (c *legacyClient) ListMaps(ctx context.Context, p ListParams) (*ListResult, error) {
	q, pageSize := legacyListQuery(p)

	var resp legacyMapListResponse

	err := c.doer.getJSON(ctx, c.doer.baseURL+"/api/maps/?"+q.Encode(), &resp)

	if err != nil {
		return nil, err
	}

	briefs := make([]BriefResource, len(resp.Objects))
	for i, obj := range resp.Objects {
		briefs[i] = obj.brief()
	}

	return &ListResult{
		Resources:  briefs,
		Pagination: legacyPagination(resp.Meta, pageSize),
	}, nil
}

func (c *legacyClient) GetResource(ctx context.Context, id string) (*Resource, error) {
	var obj legacyLayer

	err := c.doer.getJSON(ctx, fmt.Sprintf("%s/api/layers/%s/", c.doer.baseURL, url.PathEscape(id)), &obj)

	if err != nil {
		return nil, err
	}

	return obj.full(), nil
}

func (c *legacyClient) GetStyle(ctx context.Context, styleURL string) ([]byte, error) {
	return fetchStyle(ctx, c.doer, styleURL)
}

func (c *legacyClient) UploadLayer(ctx context.Context, p UploadPayload) (string, error) {
	return "", incompatible("layer upload", APIVersionLegacy)
}

func (c *legacyClient) AttachMetadata(ctx context.Context, id string, metadataPath string) error {
	return incompatible("metadata upload", APIVersionLegacy)
}

func (c *legacyClient) AttachStyle(ctx context.Context, id string, stylePath string) error {
	return incompatible("style upload", APIVersionLegacy)
}

func (c *legacyClient) DeleteResource(ctx context.Context, id string) error {
	return c.doer.delete(ctx, fmt.Sprintf("%s/api/layers/%s/", c.doer.baseURL, url.PathEscape(id)))
}

func (l *legacyLayer) brief() BriefResource {
	access := "private"
	if l.IsPublished {
		access = "public"
	}

	return BriefResource{
		ID:              strconv.Itoa(l.ID),
		Type:            ResourceTypeLayer,
		Title:           l.Title,
		Abstract:        l.Abstract,
		GeometryType:    l.StoreType,
		Owner:           l.OwnerName,
		Access:          access,
		Bbox:            l.bbox(),
		DetailURL:       l.DetailURL,
		DefaultStyleURL: l.DefaultSLD,
	}
}

func (l *legacyLayer) full() *Resource {
	res := &Resource{
		BriefResource: l.brief(),
		Keywords:      l.Keywords,
		Category:      l.Category,
	}

	for _, s := range l.Styles {
		res.Styles = append(res.Styles, Style{Name: s.Name, SLDURL: s.SLDURL})
	}

	return res
}

func (m *legacyMap) brief() BriefResource {
	access := "private"
	if m.IsPublished {
		access = "public"
	}

	return BriefResource{
		ID:        strconv.Itoa(m.ID),
		Type:      ResourceTypeMap,
		Title:     m.Title,
		Abstract:  m.Abstract,
		Owner:     m.OwnerName,
		Access:    access,
		Bbox:      legacyBbox(m.BboxX0, m.BboxX1, m.BboxY0, m.BboxY1),
		DetailURL: m.DetailURL,
	}
}

func (l *legacyLayer) bbox() BBox {
	return legacyBbox(l.BboxX0, l.BboxX1, l.BboxY0, l.BboxY1)
}

// legacyBbox parses the tastypie decimal-string ordinates.
func legacyBbox(x0, x1, y0, y1 string) BBox {
	parse := func(s string) float64 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}

	return BBox{
		MinX: parse(x0),
		MinY: parse(y0),
		MaxX: parse(x1),
		MaxY: parse(y1),
	}
}
