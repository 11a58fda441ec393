package syncengine

// FieldKind identifies how a payload value should be coerced before
// binding it to a column.
type FieldKind int

const (
	FieldInt FieldKind = iota
	FieldFloat
	FieldString
	FieldBool
	FieldDateTime
)

// FieldSpec describes one column beyond the id/LastSync pair every
// sync entity carries implicitly.
type FieldSpec struct {
	Name    string
	Kind    FieldKind
	Default any
}

// EntitySpec binds a sync endpoint name to its backing table and
// payload shape.
type EntitySpec struct {
	// Name is the path segment ("tables", "orders", "orderitems", "products").
	Name string
	// ArrayKey is the top-level JSON array key the Sync payload must carry.
	ArrayKey string
	// Table is the unqualified table name.
	Table string
	Fields []FieldSpec
}

// Registry is the fixed set of entities the sync surface exposes
// (spec.md §6.1's `POST /sync/{tables|orders|orderitems|products}`).
var Registry = map[string]EntitySpec{
	"tables": {
		Name: "tables", ArrayKey: "tables", Table: "tables",
		Fields: []FieldSpec{
			{Name: "Number", Kind: FieldInt, Default: 0},
			{Name: "Capacity", Kind: FieldInt, Default: 0},
			{Name: "Status", Kind: FieldString, Default: "free"},
			{Name: "QRCode", Kind: FieldString, Default: ""},
		},
	},
	"orders": {
		Name: "orders", ArrayKey: "orders", Table: "orders",
		Fields: []FieldSpec{
			{Name: "CustomerId", Kind: FieldInt, Default: 0},
			{Name: "Status", Kind: FieldString, Default: "open"},
			{Name: "Total", Kind: FieldFloat, Default: 0.0},
			{Name: "OrderDate", Kind: FieldDateTime, Default: nil},
		},
	},
	"orderitems": {
		// ArrayKey is "items", not "orderitems": spec.md §3.4 enumerates
		// the payload array-field names as tables/orders/items/products.
		// Only the URL path segment (Name, per §6.1) is "orderitems".
		Name: "orderitems", ArrayKey: "items", Table: "order_items",
		Fields: []FieldSpec{
			{Name: "OrderId", Kind: FieldInt, Default: 0},
			{Name: "ProductId", Kind: FieldInt, Default: 0},
			{Name: "Quantity", Kind: FieldInt, Default: 1},
			{Name: "Price", Kind: FieldFloat, Default: 0.0},
		},
	},
	"products": {
		Name: "products", ArrayKey: "products", Table: "products",
		Fields: []FieldSpec{
			{Name: "Name", Kind: FieldString, Default: ""},
			{Name: "Price", Kind: FieldFloat, Default: 0.0},
			{Name: "Available", Kind: FieldBool, Default: true},
			{Name: "Category", Kind: FieldString, Default: ""},
		},
	},
}
