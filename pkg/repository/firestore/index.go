package firestore

import "github.com/m-mizutani/fireconf"

// IndexConfig returns the composite and vector indexes the queries of this
// backend depend on. dimension must match the configured embedding
// dimension; FindNearest fails on vectors of any other size.
func IndexConfig(prefix string, dimension int) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: prefix + collectionMemories,
				Indexes: []fireconf.Index{
					// ListMissingEmbedding: HasEmbedding ==, UpdatedAt ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "HasEmbedding", Order: fireconf.OrderAscending},
							{Path: "UpdatedAt", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: prefix + collectionEmbeddings,
				Indexes: []fireconf.Index{
					// Search: AgentID pre-filter, then nearest neighbors
					{
						Fields: []fireconf.IndexField{
							{Path: "AgentID", Order: fireconf.OrderAscending},
							{
								Path: "Embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
			{
				Name: prefix + collectionRules,
				Indexes: []fireconf.Index{
					// ListActiveByAgent: AgentID ==, IsActive ==
					{
						Fields: []fireconf.IndexField{
							{Path: "AgentID", Order: fireconf.OrderAscending},
							{Path: "IsActive", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: prefix + collectionAlertLogs,
				Indexes: []fireconf.Index{
					// ListByRule: RuleID ==, CreatedAt DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "RuleID", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderDescending},
						},
					},
				},
			},
		},
	}
}
