package mocksocrata

import (
	"encoding/json"

	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

// NewAsset returns a well-formed catalog asset with every resource key populated.
func NewAsset(id, assetType, ownerID string) socrata.RawAsset {
	return socrata.RawAsset{
		Resource: socrata.Resource{
			ID:                id,
			Name:              "Asset " + id,
			Description:       "Description of " + id,
			Attribution:       "City of Austin",
			Type:              assetType,
			UpdatedAt:         "2023-03-12T07:00:00.000Z",
			CreatedAt:         "2019-06-01T15:30:00.000Z",
			MetadataUpdatedAt: "2023-03-12T08:00:00.000Z",
			DataUpdatedAt:     "2023-11-05T07:00:00.000Z",
			DownloadCount:     number("42"),
			PublicationDate:   "2019-06-02T17:00:00.000Z",
			PageViews: socrata.PageViews{
				LastWeek:  number("3"),
				LastMonth: number("17"),
				Total:     number("1234"),
			},
		},
		Owner: socrata.Owner{
			ID:          ownerID,
			DisplayName: "Owner " + ownerID,
		},
	}
}

func number(s string) *json.Number {
	n := json.Number(s)
	return &n
}
