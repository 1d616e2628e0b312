package memory

import "github.com/hashicorp/go-memdb"

const (
	tableNodes      = "nodes"
	tableNICs       = "nics"
	tableConductors = "conductors"
	tableSequences  = "sequences"

	indexID       = "id"
	indexName     = "name"
	indexUUID     = "uuid"
	indexAddress  = "address"
	indexNodeID   = "node_id"
	indexHostname = indexID
)

// sequence is a per-table id counter. Keeping it inside memdb means an
// aborted transaction also gives back the ids it allocated.
type sequence struct {
	Name  string
	Value int64
}

// Unique secondary indexes are declared for lookups only. memdb does not
// reject duplicates on them, so every writer checks before inserting.
func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableNodes: {
				Name: tableNodes,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "ID"},
					},
					indexName: {
						Name:    indexName,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
			tableNICs: {
				Name: tableNICs,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "ID"},
					},
					indexUUID: {
						Name:    indexUUID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "UUID"},
					},
					indexAddress: {
						Name:    indexAddress,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Address"},
					},
					indexNodeID: {
						Name:    indexNodeID,
						Indexer: &memdb.IntFieldIndex{Field: "NodeID"},
					},
				},
			},
			tableConductors: {
				Name: tableConductors,
				Indexes: map[string]*memdb.IndexSchema{
					indexHostname: {
						Name:    indexHostname,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Hostname"},
					},
				},
			},
			tableSequences: {
				Name: tableSequences,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
		},
	}
}
