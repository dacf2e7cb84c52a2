package openapi

import (
	"encoding/json"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// load round-trips doc through JSON so that component references resolve.
func load(t *testing.T, doc *openapi3.T) *openapi3.T {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	loader := openapi3.NewLoader()
	loaded, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("LoadFromData: %v", err)
	}
	if err := loaded.Validate(loader.Context); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return loaded
}

func TestGenerateValidates(t *testing.T) {
	doc := load(t, Generate("/", "0.1.0", "X-Access-Key"))

	if doc.OpenAPI != "3.0.3" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if doc.Info.Title != "tollgate API" || doc.Info.Version != "0.1.0" {
		t.Errorf("info = %+v", doc.Info)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "/" {
		t.Errorf("servers = %+v", doc.Servers)
	}
}

func TestGeneratePaths(t *testing.T) {
	doc := load(t, Generate("/", "dev", "X-Access-Key"))

	tests := []struct {
		path, method, operationID, security string
	}{
		{"/api/v1/keys/{seconds}", "POST", "generateKey", "bearerAuth"},
		{"/api/v1/key/{key}", "GET", "getKey", "bearerAuth"},
		{"/api/v1/key/{key}", "DELETE", "deleteKey", "bearerAuth"},
		{"/api/v1/keys", "GET", "listKeys", "bearerAuth"},
		{"/api/v1/keys/reload", "POST", "reloadKeys", "bearerAuth"},
		{"/gate", "GET", "gateByHeader", "accessKey"},
		{"/gate/{key}", "GET", "gateByPath", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			item := doc.Paths.Value(tt.path)
			if item == nil {
				t.Fatalf("path %s not documented", tt.path)
			}
			op := item.GetOperation(tt.method)
			if op == nil {
				t.Fatalf("%s %s not documented", tt.method, tt.path)
			}
			if op.OperationID != tt.operationID {
				t.Errorf("operationId = %q, want %q", op.OperationID, tt.operationID)
			}
			if tt.security == "" {
				if op.Security != nil && len(*op.Security) != 0 {
					t.Errorf("security = %v, want none", *op.Security)
				}
				return
			}
			if op.Security == nil || len(*op.Security) != 1 {
				t.Fatalf("security = %v, want one requirement", op.Security)
			}
			if _, ok := (*op.Security)[0][tt.security]; !ok {
				t.Errorf("security = %v, want %s", *op.Security, tt.security)
			}
			for _, code := range []string{"400", "401", "500"} {
				if op.Responses.Value(code) == nil {
					t.Errorf("missing %s response", code)
				}
			}
			if op.Responses.Value("default") != nil {
				t.Error("unexpected default response")
			}
		})
	}
}

func TestGenerateKeyHeader(t *testing.T) {
	doc := Generate("/", "dev", "X-Gate-Key")

	scheme := doc.Components.SecuritySchemes["accessKey"].Value
	if scheme.Type != "apiKey" || scheme.In != "header" || scheme.Name != "X-Gate-Key" {
		t.Errorf("accessKey scheme = %+v", scheme)
	}
}

func TestGenerateKeySchema(t *testing.T) {
	doc := load(t, Generate("/", "dev", "X-Access-Key"))

	key := doc.Components.Schemas["Key"].Value
	for _, field := range []string{"key", "valid_until", "expiry_time", "expires_in"} {
		if _, ok := key.Properties[field]; !ok {
			t.Errorf("Key schema missing %q", field)
		}
	}

	param := doc.Paths.Value("/api/v1/key/{key}").Get.Parameters.GetByInAndName(openapi3.ParameterInPath, "key")
	if param == nil {
		t.Fatal("key path parameter not declared")
	}
	s := param.Schema.Value
	if s.MinLength != 32 || s.MaxLength == nil || *s.MaxLength != 32 {
		t.Errorf("key length bounds = %d..%v", s.MinLength, s.MaxLength)
	}
}
