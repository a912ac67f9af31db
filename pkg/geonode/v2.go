package geonode

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"
)

// v2Client speaks the GeoNode v2 REST API (GeoNode 3.x and later).
type v2Client struct {
	doer *doer
}

var v2Capabilities = []Capability{
	CapFilterKeyword,
	CapFilterCategory,
	CapFilterBbox,
	CapFilterAccess,
	CapUploadLayer,
	CapAttachMetadata,
	CapAttachStyle,
	CapDeleteResource,
}

func (c *v2Client) BaseURL() string {
	return c.doer.baseURL
}

func (c *v2Client) APIVersion() string {
	return APIVersionV2
}

func (c *v2Client) Capabilities() []Capability {
	return v2Capabilities
}

func (c *v2Client) Supports(cap Capability) bool {
	return supports(v2Capabilities, cap)
}

func (c *v2Client) MaxPageSize() int {
	return v2MaxPageSize
}

// Wire types for the v2 layer list and detail documents.

type v2Layer struct {
	PK                 int            `json:"pk"`
	Title              string         `json:"title"`
	Abstract           string         `json:"abstract"`
	Subtype            string         `json:"subtype"`
	IsPublished        bool           `json:"is_published"`
	DetailURL          string         `json:"detail_url"`
	MetadataDetailURL  string         `json:"metadata_detail_url"`
	Owner              v2Owner        `json:"owner"`
	BboxPolygon        *v2Polygon     `json:"bbox_polygon"`
	Keywords           []v2Keyword    `json:"keywords"`
	Category           *v2Category    `json:"category"`
	TemporalExtentFrom string         `json:"temporal_extent_start"`
	TemporalExtentTo   string         `json:"temporal_extent_end"`
	DefaultStyle       *v2Style       `json:"default_style"`
	Styles             []v2Style      `json:"styles"`
}

type v2Owner struct {
	Username string `json:"username"`
}

type v2Polygon struct {
	Coordinates [][][]float64 `json:"coordinates"`
}

type v2Keyword struct {
	Name string `json:"name"`
}

type v2Category struct {
	Identifier string `json:"identifier"`
}

type v2Style struct {
	Name   string `json:"name"`
	SLDURL string `json:"sld_url"`
}

type v2LayerListResponse struct {
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Total    int       `json:"total"`
	Layers   []v2Layer `json:"layers"`
}

type v2LayerDetailResponse struct {
	Layer v2Layer `json:"layer"`
}

// v2ListQuery serializes list parameters; shared by the layer and map
// list endpoints, which accept the same filters.
func v2ListQuery(p ListParams) url.Values {
	q := url.Values{}

	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.Keyword != "" {
		q.Set("search", p.Keyword)
		q.Add("search_fields", "title")
		q.Add("search_fields", "abstract")
	}
	if p.Category != "" {
		q.Set("filter{category.identifier}", p.Category)
	}
	if p.Bbox != nil {
		q.Set("extent", fmt.Sprintf("%g,%g,%g,%g", p.Bbox.MinX, p.Bbox.MinY, p.Bbox.MaxX, p.Bbox.MaxY))
	}
	if p.Access != "" {
		q.Set("filter{is_published}", strconv.FormatBool(p.Access == "public"))
	}
	if p.OrderBy != "" {
		sort := p.OrderBy
		if p.Reverse {
			sort = "-" + sort
		}
		q.Set("sort[]", sort)
	}

	return q
}

func (c *v2Client) ListResources(ctx context.Context, p ListParams) (*ListResult, error) {
	q := v2ListQuery(p)

	var resp v2LayerListResponse

	err := c.doer.getJSON(ctx, c.doer.baseURL+"/api/v2/layers/?"+q.Encode(), &resp)

	if err != nil {
		return nil, err
	}

	briefs := make([]BriefResource, len(resp.Layers))
	for i, layer := range resp.Layers {
		briefs[i] = layer.brief()
	}

	return &ListResult{
		Resources: briefs,
		Pagination: Pagination{
			Page:     resp.Page,
			PageSize: resp.PageSize,
			Total:    resp.Total,
		},
	}, nil
}

type v2Map struct {
	PK          int        `json:"pk"`
	Title       string     `json:"title"`
	Abstract    string     `json:"abstract"`
	IsPublished bool       `json:"is_published"`
	DetailURL   string     `json:"detail_url"`
	Owner       v2Owner    `json:"owner"`
	BboxPolygon *v2Polygon `json:"bbox_polygon"`
}

type v2MapListResponse struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Total    int     `json:"total"`
	Maps     []v2Map `json:"maps"`
}

func (c *v2Client) ListMaps(ctx context.Context, p ListParams) (*ListResult, error) {
	q := v2ListQuery(p)

	var resp v2MapListResponse

	err := c.doer.getJSON(ctx, c.doer.baseURL+"/api/v2/maps/?"+q.Encode(), &resp)

	if err != nil {
		return nil, err
	}

	briefs := make([]BriefResource, len(resp.Maps))
	for i, m := range resp.Maps {
		briefs[i] = m.brief()
	}

	return &ListResult{
		Resources: briefs,
		Pagination: Pagination{
			Page:     resp.Page,
			PageSize: resp.PageSize,
			Total:    resp.Total,
		},
	}, nil
}

func (c *v2Client) GetResource(ctx context.Context, id string) (*Resource, error) {
	var resp v2LayerDetailResponse

	err := c.doer.getJSON(ctx, fmt.Sprintf("%s/api/v2/layers/%s/", c.doer.baseURL, url.PathEscape(id)), &resp)

	if err != nil {
		return nil, err
	}

	return resp.Layer.full(), nil
}

func (c *v2Client) GetStyle(ctx context.Context, styleURL string) ([]byte, error) {
	return fetchStyle(ctx, c.doer, styleURL)
}

type v2UploadResponse struct {
	Layer struct {
		PK int `json:"pk"`
	} `json:"layer"`
}

func (c *v2Client) UploadLayer(ctx context.Context, p UploadPayload) (string, error) {
	var resp v2UploadResponse

	err := c.doer.postMultipart(ctx, "POST", c.doer.baseURL+"/api/v2/uploads/upload",
		map[string]string{"title": p.Title},
		map[string]string{"base_file": p.LayerPath},
		&resp,
	)

	if err != nil {
		return "", err
	}

	if resp.Layer.PK == 0 {
		return "", &Error{Kind: KindServer, Message: "upload response carried no layer id"}
	}

	return strconv.Itoa(resp.Layer.PK), nil
}

func (c *v2Client) AttachMetadata(ctx context.Context, id string, metadataPath string) error {
	return c.doer.postMultipart(ctx, "PUT",
		fmt.Sprintf("%s/api/v2/layers/%s/metadata", c.doer.baseURL, url.PathEscape(id)),
		nil,
		map[string]string{"metadata_file": metadataPath},
		nil,
	)
}

func (c *v2Client) AttachStyle(ctx context.Context, id string, stylePath string) error {
	return c.doer.postMultipart(ctx, "PUT",
		fmt.Sprintf("%s/api/v2/layers/%s/styles", c.doer.baseURL, url.PathEscape(id)),
		nil,
		map[string]string{"sld_file": stylePath},
		nil,
	)
}

func (c *v2Client) DeleteResource(ctx context.Context, id string) error {
	return c.doer.delete(ctx, fmt.Sprintf("%s/api/v2/layers/%s/", c.doer.baseURL, url.PathEscape(id)))
}

func (l *v2Layer) brief() BriefResource {
	access := "private"
	if l.IsPublished {
		access = "public"
	}

	brief := BriefResource{
		ID:           strconv.Itoa(l.PK),
		Type:         ResourceTypeLayer,
		Title:        l.Title,
		Abstract:     l.Abstract,
		GeometryType: l.Subtype,
		Owner:        l.Owner.Username,
		Access:       access,
		DetailURL:    l.DetailURL,
	}

	if l.BboxPolygon != nil {
		brief.Bbox = l.BboxPolygon.envelope()
	}

	if l.DefaultStyle != nil {
		brief.DefaultStyleURL = l.DefaultStyle.SLDURL
	}

	return brief
}

func (l *v2Layer) full() *Resource {
	res := &Resource{
		BriefResource: l.brief(),
		MetadataURL:   l.MetadataDetailURL,
	}

	for _, kw := range l.Keywords {
		res.Keywords = append(res.Keywords, kw.Name)
	}

	if l.Category != nil {
		res.Category = l.Category.Identifier
	}

	if t, err := time.Parse(time.RFC3339, l.TemporalExtentFrom); err == nil {
		res.TemporalFrom = &t
	}
	if t, err := time.Parse(time.RFC3339, l.TemporalExtentTo); err == nil {
		res.TemporalTo = &t
	}

	for _, s := range l.Styles {
		res.Styles = append(res.Styles, Style{Name: s.Name, SLDURL: s.SLDURL})
	}

	return res
}

func (m *v2Map) brief() BriefResource {
	access := "private"
	if m.IsPublished {
		access = "public"
	}

	brief := BriefResource{
		ID:        strconv.Itoa(m.PK),
		Type:      ResourceTypeMap,
		Title:     m.Title,
		Abstract:  m.Abstract,
		Owner:     m.Owner.Username,
		Access:    access,
		DetailURL: m.DetailURL,
	}

	if m.BboxPolygon != nil {
		brief.Bbox = m.BboxPolygon.envelope()
	}

	return brief
}

// envelope reduces the bbox polygon to its bounding envelope.
func (p *v2Polygon) envelope() BBox {
	var box BBox

	first := true

	for _, ring := range p.Coordinates {
		for _, point := range ring {
			if len(point) < 2 {
				continue
			}
			x, y := point[0], point[1]
			if first {
				box = BBox{MinX: x, MinY: y, MaxX: x, MaxY: y}
				first = false
				continue
			}
			if x < box.MinX {
				box.MinX = x
			}
			if y < box.MinY {
				box.MinY = y
			}
			if x > box.MaxX {
				box.MaxX = x
			}
			if y > box.MaxY {
				box.MaxY = y
			}
		}
	}

	return box
}

func supports(caps []Capability, cap Capability) bool {
	for _, c := range caps {
		if c == cap {
			return true
		}
	}
	return false
}

// fetchStyle downloads an SLD document and sanity-checks it before
// returning the raw XML. A style the host cannot load is better
// rejected here than inside the rendering pipeline.
func fetchStyle(ctx context.Context, d *doer, styleURL string) ([]byte, error) {
	body, err := d.getRaw(ctx, styleURL)

	if err != nil {
		return nil, err
	}

	if err := validateSLD(body); err != nil {
		return nil, &Error{Kind: KindServer, Message: err.Error(), Err: err}
	}

	return body, nil
}

func validateSLD(raw []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var rootSeen, namedLayerSeen bool

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("downloaded style is not well-formed XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if !rootSeen {
			if start.Name.Local != "StyledLayerDescriptor" {
				return fmt.Errorf("downloaded document is not an SLD style")
			}
			rootSeen = true
			continue
		}

		if start.Name.Local == "NamedLayer" {
			namedLayerSeen = true
			break
		}
	}

	if !rootSeen {
		return fmt.Errorf("downloaded style document is empty")
	}

	if !namedLayerSeen {
		return fmt.Errorf("SLD document has no NamedLayer element")
	}

	return nil
}
