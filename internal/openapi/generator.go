package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the OpenAPI document for the admin API and the gate.
// keyHeader is the header the gate accepts an access key from.
func Generate(baseURL, version, keyHeader string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "tollgate API",
			Description: "Issue, inspect and revoke expiring access keys, and check them at the gate.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Components.SecuritySchemes["accessKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: keyHeader,
		},
	}

	doc.Components.Schemas["ErrorResponse"] = errorSchema()
	doc.Components.Schemas["Key"] = keySchema()

	doc.Paths = openapi3.NewPaths()
	addAdminPaths(doc)
	addGatePaths(doc)

	return doc
}

func addAdminPaths(doc *openapi3.T) {
	admin := openapi3.SecurityRequirements{{"bearerAuth": {}}}
	keyRef := openapi3.NewSchemaRef("#/components/schemas/Key", nil)

	doc.Paths.Set("/api/v1/keys/{seconds}", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Generate a key valid for the given number of seconds",
			OperationID: "generateKey",
			Security:    &admin,
			Parameters: openapi3.Parameters{
				pathParam("seconds", "Key lifetime in whole seconds.", &openapi3.Schema{
					Type:   &openapi3.Types{"integer"},
					Format: "int64",
					Min:    openapi3.Float64Ptr(0),
				}),
			},
			Responses: newResponses("201", "Key generated", keyRef),
		},
	})

	keyParam := pathParam("key", "The 32-character access key.", &openapi3.Schema{
		Type:      &openapi3.Types{"string"},
		MinLength: 32,
		MaxLength: openapi3.Uint64Ptr(32),
	})

	doc.Paths.Set("/api/v1/key/{key}", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Look up a key without checking its expiry",
			OperationID: "getKey",
			Security:    &admin,
			Parameters:  openapi3.Parameters{keyParam},
			Responses:   newResponses("200", "The stored key", keyRef, "404"),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Remove a key",
			OperationID: "deleteKey",
			Security:    &admin,
			Parameters:  openapi3.Parameters{keyParam},
			Responses:   newResponses("204", "Key removed", nil, "404"),
		},
	})

	doc.Paths.Set("/api/v1/keys", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "List keys ordered by expiry",
			OperationID: "listKeys",
			Security:    &admin,
			Responses: newResponses("200", "All keys", &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"resource": &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type:  &openapi3.Types{"array"},
								Items: keyRef,
							},
						},
						"meta": &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type: &openapi3.Types{"object"},
								Properties: openapi3.Schemas{
									"count": intSchema("Number of keys returned."),
								},
							},
						},
					},
				},
			}),
		},
	})

	doc.Paths.Set("/api/v1/keys/reload", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Reload the in-memory key set from the store",
			OperationID: "reloadKeys",
			Security:    &admin,
			Responses: newResponses("200", "Keys reloaded", &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"loaded": intSchema("Number of keys now held in memory."),
					},
				},
			}),
		},
	})
}

func addGatePaths(doc *openapi3.T) {
	gate := openapi3.SecurityRequirements{{"accessKey": {}}}
	keyRef := openapi3.NewSchemaRef("#/components/schemas/Key", nil)

	doc.Paths.Set("/gate", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"gate"},
			Summary:     "Admit a request carrying a valid key in the header",
			OperationID: "gateByHeader",
			Security:    &gate,
			Responses:   newResponses("200", "Key admitted", keyRef),
		},
	})

	doc.Paths.Set("/gate/{key}", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"gate"},
			Summary:     "Admit a request carrying a valid key in the path",
			OperationID: "gateByPath",
			Security:    &openapi3.SecurityRequirements{},
			Parameters: openapi3.Parameters{
				pathParam("key", "The 32-character access key.", &openapi3.Schema{
					Type: &openapi3.Types{"string"},
				}),
			},
			Responses: newResponses("200", "Key admitted", keyRef),
		},
	})
}

func pathParam(name, description string, schema *openapi3.Schema) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          openapi3.ParameterInPath,
			Description: description,
			Required:    true,
			Schema:      &openapi3.SchemaRef{Value: schema},
		},
	}
}

func intSchema(description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:        &openapi3.Types{"integer"},
			Format:      "int64",
			Description: description,
		},
	}
}

func keySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"key", "valid_until", "expiry_time", "expires_in"},
			Properties: openapi3.Schemas{
				"key": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:        &openapi3.Types{"string"},
					Description: "The access key.",
				}},
				"valid_until": intSchema("Expiry in seconds since the Unix epoch. The key is valid up to and including this instant."),
				"expiry_time": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:   &openapi3.Types{"string"},
					Format: "date-time",
				}},
				"expires_in": intSchema("Seconds left before expiry, 0 once expired."),
			},
		},
	}
}

func errorSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
}

// newResponses builds a success response plus the error responses every
// route can return. A nil schema means the success response has no body.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, extra ...string) *openapi3.Responses {
	responses := openapi3.NewResponses()
	// NewResponses pre-populates "default"
	responses.Delete("default")

	success := openapi3.NewResponse().WithDescription(description)
	if schema != nil {
		success.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	responses.Set(statusCode, &openapi3.ResponseRef{Value: success})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	codes := append([]string{"400", "401"}, extra...)
	codes = append(codes, "500")
	for _, code := range codes {
		responses.Set(code, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription(errorDescriptions[code]).
				WithContent(openapi3.NewContentWithJSONSchemaRef(errorRef)),
		})
	}
	return responses
}

var errorDescriptions = map[string]string{
	"400": "Malformed key or lifetime",
	"401": "Missing, invalid or expired credentials",
	"404": "Key not found",
	"500": "Key store failure",
}
