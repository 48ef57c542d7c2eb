package handlers

import (
	"context"
	"maps"
	"slices"

	"github.com/invopop/jsonschema"
	apierrors "github.com/maruel/xbase/internal/errors"
	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/utils"
)

var schemaTypes = map[string]any{
	"update-response":      models.UpdateResponse{},
	"upload-response":      models.UploadResponse{},
	"chat-history-request": models.ChatHistoryRequest{},
	"status-response":      models.StatusResponse{},
	"history-response":     models.HistoryResponse{},
	"error-response":       utils.ErrorResponse{},
	"ask-request":          models.AskRequest{},
	"file-ref":             models.FileRef{},
}

// SchemaListRequest is the request of GET /api/schema (empty).
type SchemaListRequest struct{}

// SchemaListResponse lists the documented types.
type SchemaListResponse struct {
	Names []string `json:"names"`
}

// ListSchemas returns the names accepted by Schema.
func ListSchemas(ctx context.Context, req SchemaListRequest) (*SchemaListResponse, error) {
	return &SchemaListResponse{Names: slices.Sorted(maps.Keys(schemaTypes))}, nil
}

// SchemaRequest selects a documented type.
type SchemaRequest struct {
	Name string `path:"name"`
}

// Schema returns the JSON schema of a request or response type.
func Schema(ctx context.Context, req SchemaRequest) (*jsonschema.Schema, error) {
	v, ok := schemaTypes[req.Name]
	if !ok {
		return nil, apierrors.NotFound("schema " + req.Name)
	}
	r := &jsonschema.Reflector{DoNotReference: true}
	return r.Reflect(v), nil
}
