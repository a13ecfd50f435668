package types

// IndexDescriptor names an index and the table it belongs to.
type IndexDescriptor struct {
	Name  string `json:"name"`
	Table string `json:"table"`
}

// ColumnDescriptor pairs a table with its columns in store-native order.
type ColumnDescriptor struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// QueryPlanStep is one explanatory line produced by the store's query planner.
type QueryPlanStep string
