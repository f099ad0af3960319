package resp3

// Node is one entry of the depth-tagged pre-order traversal the parser
// emits for a single top-level response. Aggregate nodes (Array, Set, Map,
// Attribute, Push) are followed by their children in the same traversal;
// Size holds the declared wire count (pairs, for Map/Attribute) and is 1
// for every leaf kind.
//
// Bytes borrows directly into the parser's internal buffer. It is only
// valid until the visitor returns; copy it before storing it anywhere.
type Node struct {
	Kind    NodeKind
	Size    int64
	Depth   int
	Bytes   []byte
	Integer int64
	Double  float64
	Boolean bool
}

// Action tells the parser how to proceed after a visitor call.
type Action int

const (
	ActionContinue Action = iota
	ActionAbort
)

// Visitor receives each node the parser decodes. A non-nil err means the
// node itself is malformed in a way that does not abort the whole parse
// (there is currently no such case — fatal errors are returned from Feed
// directly); the argument exists to keep the contract in spec.md §4.1
// explicit. Returning ActionAbort stops the parser mid top-level response;
// Feed then returns ErrAborted.
type Visitor func(Node, error) Action
