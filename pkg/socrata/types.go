package socrata

import "encoding/json"

// CatalogResponse is the body of GET /api/catalog/v1.
type CatalogResponse struct {
	Results       []RawAsset `json:"results"`
	ResultSetSize int        `json:"resultSetSize"`
}

// RawAsset is one catalog search result.
type RawAsset struct {
	Resource       Resource       `json:"resource"`
	Classification Classification `json:"classification"`
	Owner          Owner          `json:"owner"`
}

// ID returns the asset's four-by-four identifier.
func (a RawAsset) ID() string {
	return a.Resource.ID
}

type Resource struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Attribution       string      `json:"attribution"`
	Type              string      `json:"type"`
	UpdatedAt         string      `json:"updatedAt"`
	CreatedAt         string      `json:"createdAt"`
	MetadataUpdatedAt string      `json:"metadata_updated_at"`
	DataUpdatedAt     string      `json:"data_updated_at"`
	DownloadCount     *json.Number `json:"download_count"`
	PublicationDate   string      `json:"publication_date"`
	PageViews         PageViews   `json:"page_views"`
}

// PageViews counters are nil when the catalog reports null or omits them.
type PageViews struct {
	LastWeek  *json.Number `json:"page_views_last_week"`
	LastMonth *json.Number `json:"page_views_last_month"`
	Total     *json.Number `json:"page_views_total"`
}

type Classification struct {
	DomainCategory        string       `json:"domain_category"`
	DomainTags            []string     `json:"domain_tags"`
	DomainMetadata        []MetadataKV `json:"domain_metadata"`
	DomainPrivateMetadata []MetadataKV `json:"domain_private_metadata"`
}

// MetadataKV is one custom metadata entry. Keys are "<Fieldset>_<Field-name>".
type MetadataKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ReplaceResult is the SODA upsert/replace summary.
type ReplaceResult struct {
	ByRowIdentifier int `json:"By RowIdentifier"`
	BySID           int `json:"By SID"`
	RowsCreated     int `json:"Rows Created"`
	RowsUpdated     int `json:"Rows Updated"`
	RowsDeleted     int `json:"Rows Deleted"`
	Errors          int `json:"Errors"`
}
