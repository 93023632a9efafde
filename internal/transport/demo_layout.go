package transport

import (
	"github.com/logdyhq/logdy-ui/internal/handler"
	"github.com/logdyhq/logdy-ui/internal/layout"
	"github.com/logdyhq/logdy-ui/internal/model"
)

var _ Client = (*Demo)(nil)

// demoColumns pairs a column definition with its handler source. The
// sources are real user-level snippets so the demo exercises the same
// compile path as user-authored columns.
var demoColumns = []struct {
	name   string
	width  int
	hidden bool
	source string
}{
	{name: "ts", width: 150, source: `(line) => {
		return { text: new Date(line.ts).toISOString() }
	}`},
	{name: "method", width: 100, source: `(line) => {
		return {
			text: line.json_content.method,
			facets: [{ name: "Method", value: line.json_content.method }]
		}
	}`},
	{name: "level", width: 100, source: `(line) => {
		return {
			text: line.json_content.level,
			facets: [{ name: "Level", value: line.json_content.level }]
		}
	}`},
	{name: "domain", width: 300, source: `(line) => {
		return { text: line.json_content.domain }
	}`},
	{name: "ipv4", width: 300, source: `(line) => {
		return { text: line.json_content.ipv4 }
	}`},
	{name: "url", width: 300, source: `(line) => {
		return { text: line.json_content.url }
	}`},
	{name: "issuer", width: 300, source: `(line) => {
		return {
			text: line.json_content.issuer,
			facets: [{ name: "Issuer", value: line.json_content.issuer }]
		}
	}`},
	{name: "ua", hidden: true, source: `(line) => {
		return { text: line.json_content.ua }
	}`},
}

// DemoLayout builds the layout shipped with the demo transport.
func DemoLayout(compiler *handler.Compiler) (*layout.Layout, error) {
	l := layout.New("demo", model.Settings{
		MaxMessages:  1000,
		LeftColWidth: 300,
	}, compiler)

	for _, c := range demoColumns {
		col := &model.Column{
			Name:          c.name,
			Width:         c.width,
			Hidden:        c.hidden,
			HandlerSource: c.source,
		}
		if err := l.Add(col); err != nil {
			return nil, err
		}
	}
	return l, nil
}
