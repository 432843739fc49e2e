package catalog

import (
	"fmt"
	"strings"

	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

// Publishing metadata keys as they appear in domain_metadata / domain_private_metadata.
const (
	KeyAutomationMethod      = "Publishing-Information_Automation-Method"
	KeyAutomationMethodOther = "Publishing-Information_Automation-Method-(if-Other)"
	KeyUpdateFrequency       = "Publishing-Information_Update-Frequency"
	KeySpatialInformation    = "Publishing-Information_Spatial-Information"
	KeyDepartmentName        = "Ownership_Department-name"
	KeyProgramName           = "Ownership_Program-Name"
	KeyStrategicArea         = "Strategic-Area_Strategic-Direction-Outcome"
)

// DatasetURLs holds the portal prefixes an asset id is appended to.
type DatasetURLs struct {
	// Public is used for assets visible anonymously, e.g. "https://data.austintexas.gov/d/".
	Public string
	// Private is used for everything else, e.g. "https://datahub.austintexas.gov/d/".
	Private string
}

// For returns the landing page of an asset.
func (u DatasetURLs) For(id string, isPublic bool) string {
	if isPublic {
		return u.Public + id
	}
	return u.Private + id
}

// MalformedRecordError reports an upstream asset that cannot be flattened.
type MalformedRecordError struct {
	ID    string
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed asset %s: field %s: %v", e.ID, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Flatten projects one classified asset onto the published schema.
func Flatten(a ClassifiedAsset, urls DatasetURLs) (OutputRecord, error) {
	res := a.Asset.Resource
	out := OutputRecord{
		ID:                 res.ID,
		Name:               res.Name,
		Description:        res.Description,
		Attribution:        res.Attribution,
		Type:               res.Type,
		DownloadCount:      res.DownloadCount,
		PageViewsLastWeek:  res.PageViews.LastWeek,
		PageViewsLastMonth: res.PageViews.LastMonth,
		PageViewsTotal:     res.PageViews.Total,
		DatasetURL:         urls.For(res.ID, a.IsPublic),
		IsPublic:           a.IsPublic,
		OwnerDisplayName:   a.Asset.Owner.DisplayName,
		Tags:               strings.Join(a.Asset.Classification.DomainTags, ", "),
	}

	timestamps := []struct {
		field string
		in    string
		dst   *string
	}{
		{"updatedAt", res.UpdatedAt, &out.UpdatedAt},
		{"createdAt", res.CreatedAt, &out.CreatedAt},
		{"metadata_updated_at", res.MetadataUpdatedAt, &out.MetadataUpdatedAt},
		{"data_updated_at", res.DataUpdatedAt, &out.DataUpdatedAt},
		{"publication_date", res.PublicationDate, &out.PublicationDate},
	}
	for _, ts := range timestamps {
		v, err := ToCentral(ts.in)
		if err != nil {
			return OutputRecord{}, &MalformedRecordError{ID: res.ID, Field: ts.field, Err: err}
		}
		*ts.dst = v
	}

	md := MergeMetadata(a.Asset.Classification)
	out.AutomationMethod = md[KeyAutomationMethod]
	out.AutomationMethodOther = md[KeyAutomationMethodOther]
	out.UpdateFrequency = md[KeyUpdateFrequency]
	out.SpatialInformation = md[KeySpatialInformation]
	out.DepartmentName = md[KeyDepartmentName]
	out.ProgramName = md[KeyProgramName]
	out.StrategicArea = md[KeyStrategicArea]
	return out, nil
}

// MergeMetadata folds private metadata and then public metadata into one map.
// On a key collision the public value wins.
func MergeMetadata(c socrata.Classification) map[string]string {
	out := make(map[string]string, len(c.DomainPrivateMetadata)+len(c.DomainMetadata))
	for _, kv := range c.DomainPrivateMetadata {
		out[kv.Key] = kv.Value
	}
	for _, kv := range c.DomainMetadata {
		out[kv.Key] = kv.Value
	}
	return out
}

// FlattenAll flattens every asset, stopping at the first malformed one.
func FlattenAll(assets []ClassifiedAsset, urls DatasetURLs) ([]OutputRecord, error) {
	out := make([]OutputRecord, 0, len(assets))
	for _, a := range assets {
		rec, err := Flatten(a, urls)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
