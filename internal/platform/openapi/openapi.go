// Package openapi describes the registered API routes as an OpenAPI 3.0
// document and serves it with a Swagger UI page.
package openapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Operation documents one method+path pair. Routes without an entry are still
// listed with a generic description.
type Operation struct {
	Summary     string
	Tag         string
	RequestBody string // component schema name, empty for none
	Response    string // component schema name of the success body
	Status      int    // success status, 200 when zero
	Query       []QueryParam
	Errors      []int
}

type QueryParam struct {
	Name   string
	Type   string
	Detail string
}

// Generator builds the document from the router's route table.
type Generator struct {
	routes  func() []*echo.Route
	prefix  string
	version string
	ops     map[string]Operation
}

// NewGenerator documents every route whose path starts with prefix. routes is
// called on each request so late registrations are included.
func NewGenerator(routes func() []*echo.Route, prefix, version string) *Generator {
	return &Generator{routes: routes, prefix: prefix, version: version, ops: DefaultOperations()}
}

var documented = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
}

func opKey(method, path string) string { return method + " " + path }

// Describe adds or replaces the documentation of one route.
func (g *Generator) Describe(method, path string, op Operation) {
	g.ops[opKey(method, path)] = op
}

// openAPIPath turns echo's ":param" segments into "{param}" and returns the
// parameter names in order.
func openAPIPath(path string) (string, []string) {
	segs := strings.Split(path, "/")
	var params []string
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			params = append(params, s[1:])
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segs, "/"), params
}

// GenerateSpec produces the OpenAPI 3.0 document as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	routes := g.routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	paths := make(map[string]interface{})
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, g.prefix) || strings.HasSuffix(r.Path, "*") || !documented[r.Method] {
			continue
		}
		p, params := openAPIPath(r.Path)
		item, _ := paths[p].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
			paths[p] = item
		}
		item[strings.ToLower(r.Method)] = g.buildOperation(r.Method, r.Path, params)
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "clinicore API",
			"version":     g.version,
			"description": "Clinical record lifecycle and lab analytics",
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": componentSchemas(),
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]interface{}{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
		"security": []map[string][]string{{"bearerAuth": {}}},
	}
}

func (g *Generator) buildOperation(method, path string, pathParams []string) map[string]interface{} {
	op, known := g.ops[opKey(method, path)]
	if !known {
		op = Operation{Summary: method + " " + path}
	}

	parameters := make([]map[string]interface{}, 0, len(pathParams)+len(op.Query))
	for _, name := range pathParams {
		schema := map[string]interface{}{"type": "string"}
		if name == "id" || name == "patientId" {
			schema["format"] = "uuid"
		}
		parameters = append(parameters, map[string]interface{}{
			"name": name, "in": "path", "required": true, "schema": schema,
		})
	}
	for _, q := range op.Query {
		parameters = append(parameters, map[string]interface{}{
			"name": q.Name, "in": "query", "description": q.Detail,
			"schema": map[string]interface{}{"type": q.Type},
		})
	}

	status := op.Status
	if status == 0 {
		status = http.StatusOK
	}
	responses := map[string]interface{}{
		strconv.Itoa(status): buildResponse(http.StatusText(status), op.Response),
	}
	for _, code := range append([]int{http.StatusUnauthorized, http.StatusForbidden}, op.Errors...) {
		responses[strconv.Itoa(code)] = buildResponse(http.StatusText(code), "Error")
	}

	out := map[string]interface{}{
		"summary":     op.Summary,
		"operationId": operationID(method, path),
		"parameters":  parameters,
		"responses":   responses,
	}
	if op.Tag != "" {
		out["tags"] = []string{op.Tag}
	}
	if op.RequestBody != "" {
		out["requestBody"] = map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{"schema": ref(op.RequestBody)},
			},
		}
	}
	return out
}

// operationID derives a stable camel-case id, e.g. "GET /patients/:patientId/records"
// becomes "getPatientsPatientIdRecords".
func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == ':' || r == '-' }) {
		if seg == "api" || seg == "v1" {
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	return b.String()
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func buildResponse(description, schema string) map[string]interface{} {
	resp := map[string]interface{}{"description": description}
	if schema != "" {
		resp["content"] = map[string]interface{}{
			"application/json": map[string]interface{}{"schema": ref(schema)},
		}
	}
	return resp
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>clinicore API</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: "/openapi.json", dom_id: '#swagger-ui', deepLinking: true })
  </script>
</body>
</html>`

// RegisterRoutes serves /openapi.json and /docs.
func (g *Generator) RegisterRoutes(e *echo.Echo) {
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	e.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
