package curate

import (
	"context"

	"github.com/superb-ai/spb-curate-go/pkg/api"
	"github.com/superb-ai/spb-curate-go/pkg/object"
)

type SearchFieldMappingType string

const (
	MappingAnnotationClass    SearchFieldMappingType = "annotations.class_count"
	MappingAnnotationMetadata SearchFieldMappingType = "annotations.metadata"
	MappingImageMetadata      SearchFieldMappingType = "images.metadata"
)

var SearchFieldMappingSchema = &object.Schema{Type: "search_field_mapping"}

var searchFieldMappingEndpoints = api.Endpoints{
	Paths: map[string]string{
		api.OpPaginate: "/curate/dataset-query/datasets/{dataset_id}/search-field-mappings",
	},
}

// SearchFieldMapping tells a field which can be used in search queries of a dataset.
type SearchFieldMapping struct {
	*object.Object
}

func (m *SearchFieldMapping) MappingType() SearchFieldMappingType {
	return SearchFieldMappingType(object.FieldOr(m.Object, "mapping_type", ""))
}

// FetchSearchFieldMappings fetches the search field mappings of the dataset.
//
// The listing is not paginated. An empty mappingType fetches every type.
func (c *Client) FetchSearchFieldMappings(
	ctx context.Context, datasetID string, mappingType SearchFieldMappingType,
) ([]*SearchFieldMapping, error) {
	p := params()
	if mappingType != "" {
		p.Set("mapping_type", string(mappingType))
	}
	page, err := fetchPage[*SearchFieldMapping](
		ctx, c, searchFieldMappingEndpoints, map[string]any{"dataset_id": datasetID},
		p, SearchFieldMappingSchema,
	)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}
