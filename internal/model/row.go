package model

// Facet is a named categorical value extracted from a message by a
// column handler. Facets with the same name are grouped into one
// filter dimension.
type Facet struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CellHandler is the output of a column handler for one message.
type CellHandler struct {
	// Text is the value presented in the table cell or log drawer.
	Text string `json:"text"`
	// IsJSON enables pretty formatting in the drawer.
	IsJSON bool `json:"isJson,omitempty"`
	// Style is applied to the single cell, e.g. {"background": "red"}.
	Style  map[string]any `json:"style,omitempty"`
	Facets []Facet        `json:"facets,omitempty"`
	// AllowHTMLInText lets Text be interpreted as HTML. Dangerous.
	AllowHTMLInText bool `json:"allowHtmlInText,omitempty"`
	// Err carries a handler failure attributed to this cell's column.
	// When set, Text holds a fallback value.
	Err string `json:"error,omitempty"`
}

// RowHandlerFn transforms a message before row building. A nil return
// leaves the message as last mutated.
type RowHandlerFn func(Message) (*Message, error)

// CellHandlerFn renders one message into one cell.
type CellHandlerFn func(Message) (CellHandler, error)

// Middleware is a named transform applied to every incoming message,
// in order, before display. Handler is always derived from HandlerSource.
type Middleware struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	HandlerSource string       `json:"handlerTsCode,omitempty"`
	Handler       RowHandlerFn `json:"-"`
}

// Column defines one table column. ID is a short random token assigned
// at creation and never reused; Idx is a relative display-order hint
// independent of ID.
type Column struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Idx           int           `json:"idx"`
	Width         int           `json:"width,omitempty"`
	Hidden        bool          `json:"hidden,omitempty"`
	Faceted       bool          `json:"faceted,omitempty"`
	HandlerSource string        `json:"handlerTsCode,omitempty"`
	Handler       CellHandlerFn `json:"-"`
}

// FacetItem is one observed value of a facet dimension.
type FacetItem struct {
	Count    int    `json:"count"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// FacetCollection accumulates the unique values seen for one facet name.
// Counts are cumulative for the session: they are not decremented when
// rows are evicted from the window.
type FacetCollection struct {
	Name    string       `json:"name"`
	Items   []*FacetItem `json:"items"`
	Toggled bool         `json:"toggled"`
}

// FacetValues maps facet names to their collections.
type FacetValues map[string]*FacetCollection

// Row is the render-ready projection of one message through all column
// handlers. Opened and Starred are the only fields mutated after
// creation.
type Row struct {
	ID      string `json:"id"`
	Opened  bool   `json:"opened,omitempty"`
	Starred bool   `json:"starred,omitempty"`
	Open    bool   `json:"open,omitempty"`
	Msg     Message `json:"msg"`
	// Cells are the visible table columns, in column order.
	Cells []CellHandler `json:"cells"`
	// Fields cover every column including hidden ones, for the drawer.
	Fields []CellHandler `json:"fields"`
	// Facets is the concatenation of all facets emitted across columns.
	Facets []Facet `json:"facets"`
}

// StoredMessage is the persisted form of a row: the message plus its
// user-interaction metadata.
type StoredMessage struct {
	ID      string  `json:"id,omitempty"`
	Message Message `json:"message"`
	Opened  bool    `json:"opened,omitempty"`
	Starred bool    `json:"starred,omitempty"`
}

// TraceRow is one block in the correlation trace view.
type TraceRow struct {
	ID     string       `json:"id"`
	Offset int64        `json:"offset"`
	Width  int64        `json:"width"`
	Label  string       `json:"label,omitempty"`
	Style  *TimingStyle `json:"style,omitempty"`
}

// Settings is the per-layout configuration block.
type Settings struct {
	// MaxMessages bounds the in-memory row window; oldest rows are
	// evicted first once exceeded.
	MaxMessages int `json:"maxMessages"`
	// EntriesOrder is "asc" or "desc" display direction.
	EntriesOrder   string        `json:"entriesOrder,omitempty"`
	LeftColWidth   int           `json:"leftColWidth,omitempty"`
	DrawerColWidth int           `json:"drawerColWidth,omitempty"`
	Middlewares    []*Middleware `json:"middlewares"`
}
