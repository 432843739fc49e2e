// Package catalog turns raw catalog search results into the rows of the published
// metadata table.
package catalog

import (
	"encoding/json"
	"strconv"

	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/schema"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

// TypeDataset is the resource type that carries tabular rows.
const TypeDataset = "dataset"

// ClassifiedAsset is a full-view asset with its visibility decided.
type ClassifiedAsset struct {
	Asset    socrata.RawAsset
	IsPublic bool
}

// OutputRecord is one row of the published table.
//
// Every key except row_count is always emitted. Counters the catalog left null are
// emitted as null. row_count is emitted for dataset records only and is null when the
// count could not be fetched.
type OutputRecord struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	Attribution        string       `json:"attribution"`
	Type               string       `json:"type"`
	UpdatedAt          string       `json:"updatedAt"`
	CreatedAt          string       `json:"createdAt"`
	MetadataUpdatedAt  string       `json:"metadata_updated_at"`
	DataUpdatedAt      string       `json:"data_updated_at"`
	DownloadCount      *json.Number `json:"download_count"`
	PublicationDate    string       `json:"publication_date"`
	PageViewsLastWeek  *json.Number `json:"page_views_last_week"`
	PageViewsLastMonth *json.Number `json:"page_views_last_month"`
	PageViewsTotal     *json.Number `json:"page_views_total"`

	DatasetURL       string `json:"dataset_url"`
	IsPublic         bool   `json:"is_public"`
	OwnerDisplayName string `json:"owner_display_name"`
	Tags             string `json:"tags"`

	AutomationMethod      string `json:"automation_method"`
	AutomationMethodOther string `json:"automation_method_other"`
	UpdateFrequency       string `json:"update_frequency"`
	SpatialInformation    string `json:"spatial_information"`
	DepartmentName        string `json:"department_name"`
	ProgramName           string `json:"program_name"`
	StrategicArea         string `json:"strategic_area"`

	RowCount *int64 `json:"-"`
}

// IsDataset reports whether the record should carry a row count.
func (r OutputRecord) IsDataset() bool {
	return r.Type == TypeDataset
}

type outputRecordJSON OutputRecord

// MarshalJSON emits row_count only for dataset records.
func (r OutputRecord) MarshalJSON() ([]byte, error) {
	if !r.IsDataset() {
		return json.Marshal(outputRecordJSON(r))
	}
	return json.Marshal(struct {
		outputRecordJSON
		RowCount *int64 `json:"row_count"`
	}{outputRecordJSON(r), r.RowCount})
}

// Columns is the published table contract, in column order.
var Columns = schema.DatasetContract{Fields: []schema.Field{
	{Name: "id", Type: schema.FieldTypeText},
	{Name: "name", Type: schema.FieldTypeText},
	{Name: "description", Type: schema.FieldTypeText},
	{Name: "attribution", Type: schema.FieldTypeText},
	{Name: "type", Type: schema.FieldTypeText},
	{Name: "updatedAt", Type: schema.FieldTypeDate},
	{Name: "createdAt", Type: schema.FieldTypeDate},
	{Name: "metadata_updated_at", Type: schema.FieldTypeDate},
	{Name: "data_updated_at", Type: schema.FieldTypeDate},
	{Name: "download_count", Type: schema.FieldTypeNumber},
	{Name: "publication_date", Type: schema.FieldTypeDate},
	{Name: "page_views_last_week", Type: schema.FieldTypeNumber},
	{Name: "page_views_last_month", Type: schema.FieldTypeNumber},
	{Name: "page_views_total", Type: schema.FieldTypeNumber},
	{Name: "dataset_url", Type: schema.FieldTypeURL},
	{Name: "is_public", Type: schema.FieldTypeCheckbox},
	{Name: "owner_display_name", Type: schema.FieldTypeText},
	{Name: "tags", Type: schema.FieldTypeText},
	{Name: "automation_method", Type: schema.FieldTypeText},
	{Name: "automation_method_other", Type: schema.FieldTypeText},
	{Name: "update_frequency", Type: schema.FieldTypeText},
	{Name: "spatial_information", Type: schema.FieldTypeText},
	{Name: "department_name", Type: schema.FieldTypeText},
	{Name: "program_name", Type: schema.FieldTypeText},
	{Name: "strategic_area", Type: schema.FieldTypeText},
	{Name: "row_count", Type: schema.FieldTypeNumber, Nullable: true},
}}

// CSVRow renders the record in Columns order. Null numbers render empty.
func (r OutputRecord) CSVRow() []string {
	rowCount := ""
	if r.RowCount != nil {
		rowCount = strconv.FormatInt(*r.RowCount, 10)
	}
	return []string{
		r.ID,
		r.Name,
		r.Description,
		r.Attribution,
		r.Type,
		r.UpdatedAt,
		r.CreatedAt,
		r.MetadataUpdatedAt,
		r.DataUpdatedAt,
		numberCell(r.DownloadCount),
		r.PublicationDate,
		numberCell(r.PageViewsLastWeek),
		numberCell(r.PageViewsLastMonth),
		numberCell(r.PageViewsTotal),
		r.DatasetURL,
		strconv.FormatBool(r.IsPublic),
		r.OwnerDisplayName,
		r.Tags,
		r.AutomationMethod,
		r.AutomationMethodOther,
		r.UpdateFrequency,
		r.SpatialInformation,
		r.DepartmentName,
		r.ProgramName,
		r.StrategicArea,
		rowCount,
	}
}

func numberCell(n *json.Number) string {
	if n == nil {
		return ""
	}
	return n.String()
}
