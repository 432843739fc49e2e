package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atd-data-tech/socrata-metadata-pub/internal/catalog"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/mocksocrata"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

const (
	ownerID  = "8t3r-wq64"
	category = "Transportation and Mobility"
)

func withCategory(a socrata.RawAsset, c string) socrata.RawAsset {
	a.Classification.DomainCategory = c
	return a
}

func TestClassify(t *testing.T) {
	t.Parallel()

	pub := mocksocrata.NewAsset("pub1-0001", "dataset", ownerID)
	prv := mocksocrata.NewAsset("prv1-0002", "dataset", ownerID)
	onlyPublic := mocksocrata.NewAsset("odp1-0003", "dataset", ownerID)

	got := catalog.Classify(
		[]socrata.RawAsset{pub, onlyPublic},
		[]socrata.RawAsset{prv, pub},
	)

	require.Len(t, got, 2, "ids only in the public view must be ignored")
	assert.Equal(t, "prv1-0002", got[0].Asset.ID())
	assert.False(t, got[0].IsPublic)
	assert.Equal(t, "pub1-0001", got[1].Asset.ID())
	assert.True(t, got[1].IsPublic)
}

func TestClassify_Totality(t *testing.T) {
	t.Parallel()

	var full, public []socrata.RawAsset
	publicIDs := map[string]bool{}
	for i, id := range []string{"a000-0001", "b000-0002", "c000-0003", "d000-0004", "e000-0005"} {
		a := mocksocrata.NewAsset(id, "dataset", "zzzz-zzzz")
		full = append(full, a)
		if i%2 == 0 {
			public = append(public, a)
			publicIDs[id] = true
		}
	}

	got := catalog.Classify(public, full)
	require.Len(t, got, len(full))
	for _, c := range got {
		assert.Equal(t, publicIDs[c.Asset.ID()], c.IsPublic, c.Asset.ID())
	}
}

func TestClassify_ExactMatch(t *testing.T) {
	t.Parallel()

	got := catalog.Classify(
		[]socrata.RawAsset{mocksocrata.NewAsset("ABCD-1234", "dataset", ownerID)},
		[]socrata.RawAsset{mocksocrata.NewAsset("abcd-1234", "dataset", ownerID)},
	)
	require.Len(t, got, 1)
	assert.False(t, got[0].IsPublic)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	assets := catalog.Classify(nil, []socrata.RawAsset{
		mocksocrata.NewAsset("own1-0001", "dataset", ownerID),
		withCategory(mocksocrata.NewAsset("cat1-0002", "map", "xxxx-xxxx"), category),
		withCategory(mocksocrata.NewAsset("oth1-0003", "dataset", "xxxx-xxxx"), "Health and Safety"),
		mocksocrata.NewAsset("nocat-0004", "dataset", "yyyy-yyyy"),
		mocksocrata.NewAsset("own1-0001:v2", "dataset", ownerID),
		withCategory(mocksocrata.NewAsset("cat1-0002:draft", "dataset", "xxxx-xxxx"), category),
	})

	got := catalog.Filter(assets, ownerID, category)
	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.Asset.ID())
		assert.True(t, a.Asset.Owner.ID == ownerID || a.Asset.Classification.DomainCategory == category)
		assert.False(t, catalog.IsDraft(a.Asset.ID()))
	}
	assert.Equal(t, []string{"own1-0001", "cat1-0002"}, ids)
}

func TestFilter_EmptyCategoryDoesNotMatchMissing(t *testing.T) {
	t.Parallel()

	assets := catalog.Classify(nil, []socrata.RawAsset{mocksocrata.NewAsset("nocat-0001", "dataset", "xxxx-xxxx")})
	assert.Empty(t, catalog.Filter(assets, ownerID, category))
}
