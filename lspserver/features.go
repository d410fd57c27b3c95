package lspserver

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/lsfproject/lsf/logging"
	"github.com/lsfproject/lsf/transport"
)

// handleCompletion implements textDocument/completion, grounded on the
// teacher's Completion handler's envelope shape, generalized onto
// File.Completion's language-agnostic scope/qualified-lookup result.
func handleCompletion(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.CompletionParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	f, ok := s.Workspace.File(params.TextDocument.URI)
	if !ok {
		return json.Marshal([]transport.CompletionItem{})
	}
	items := f.Completion(params.Position, s.Workspace.Resolver())
	return json.Marshal(items)
}

// handleHover implements textDocument/hover, grounded on the teacher's
// Hover handler.
func handleHover(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.HoverParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	f, ok := s.Workspace.File(params.TextDocument.URI)
	if !ok {
		return json.Marshal(nil)
	}
	result, ok := f.Hover(params.Position, s.Workspace.Resolver())
	if !ok {
		return json.Marshal(nil)
	}
	return json.Marshal(result)
}

// handleDefinition implements textDocument/definition, grounded on the
// teacher's GetDefinition handler, generalized off its hand-rolled
// dotted-chain/environment/library resolution onto File.GotoDefinition
// plus the FileGraph resolver.
func handleDefinition(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.DefinitionParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	f, ok := s.Workspace.File(params.TextDocument.URI)
	if !ok {
		return json.Marshal(nil)
	}
	loc, ok := f.GotoDefinition(params.Position, s.Workspace.Resolver())
	if !ok {
		return json.Marshal(nil)
	}
	return json.Marshal(loc)
}

// handleRename implements textDocument/rename (single-file only — spec
// §4.5's rename never crosses files, per the Non-goal excluding
// refactorings other than single-symbol rename).
func handleRename(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.RenameParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	f, ok := s.Workspace.File(params.TextDocument.URI)
	if !ok {
		return json.Marshal(nil)
	}
	edit, ok := f.Rename(params.Position, params.NewName)
	if !ok {
		return json.Marshal(nil)
	}
	return json.Marshal(edit)
}

// handleSemanticTokensFull implements textDocument/semanticTokens/full.
func handleSemanticTokensFull(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	var params transport.SemanticTokensParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	f, ok := s.Workspace.File(params.TextDocument.URI)
	if !ok {
		logging.Logger.Warn("semanticTokens/full for unknown document", zap.String("uri", string(params.TextDocument.URI)))
		return json.Marshal(transport.SemanticTokens{})
	}
	return json.Marshal(f.SemanticTokens())
}
