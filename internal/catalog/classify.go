package catalog

import (
	"strings"

	"github.com/samber/lo"

	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

// Classify marks each full-view asset public iff its id appears in the public view.
//
// The full view is the iteration source: ids found only in the public view are ignored.
func Classify(publicView, fullView []socrata.RawAsset) []ClassifiedAsset {
	publicIDs := lo.SliceToMap(publicView, func(a socrata.RawAsset) (string, struct{}) {
		return a.ID(), struct{}{}
	})
	return lo.Map(fullView, func(a socrata.RawAsset, _ int) ClassifiedAsset {
		_, ok := publicIDs[a.ID()]
		return ClassifiedAsset{Asset: a, IsPublic: ok}
	})
}

// IsDraft reports whether an id names a draft or working copy ("abcd-1234:v2").
func IsDraft(id string) bool {
	return strings.Contains(id, ":")
}

// Filter keeps assets owned by ownerID or filed under categoryName, minus drafts.
// Input order is preserved.
func Filter(assets []ClassifiedAsset, ownerID, categoryName string) []ClassifiedAsset {
	return lo.Filter(assets, func(a ClassifiedAsset, _ int) bool {
		if IsDraft(a.Asset.ID()) {
			return false
		}
		return a.Asset.Owner.ID == ownerID || a.Asset.Classification.DomainCategory == categoryName
	})
}
