package lspserver

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/lsfproject/lsf/logging"
	"github.com/lsfproject/lsf/transport"
	"github.com/lsfproject/lsf/workspace"
)

// handleInitialize negotiates the position encoding, builds
// ServerCapabilities from the language definition's semantic-token
// legend, and constructs the Workspace — deferred until here because
// Workspace.New needs the negotiated encoding. Grounded on the
// teacher's Initialize, generalized off its hardcoded
// DocumentFormattingProvider/"faust-lsp" ServerInfo.
func handleInitialize(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	s.Status = Initializing

	var params transport.InitializeParams
	if err := json.Unmarshal(par, &params); err != nil {
		return nil, err
	}
	logging.Logger.Info("initialize", zap.String("rootUri", string(params.RootURI)))

	encoding := transport.UTF16
	if params.Capabilities.General != nil {
		for _, enc := range params.Capabilities.General.PositionEncodings {
			if enc == "utf-32" {
				encoding = transport.UTF32
				break
			}
			if enc == "utf-16" {
				encoding = transport.UTF16
				break
			}
		}
	}

	legend := s.ld.SemanticTokenLegend()
	tokenTypes := make([]string, len(legend))
	for i, name := range legend {
		tokenTypes[i] = string(name)
	}

	s.Capabilities = transport.ServerCapabilities{
		PositionEncoding:       &encoding,
		TextDocumentSync:       transport.Incremental,
		DefinitionProvider:     &transport.Or_ServerCapabilities_definitionProvider{Value: true},
		HoverProvider:          &transport.Or_ServerCapabilities_hoverProvider{Value: true},
		RenameProvider:         &transport.Or_ServerCapabilities_renameProvider{Value: true},
		DocumentSymbolProvider: &transport.Or_ServerCapabilities_documentSymbolProvider{Value: true},
		CompletionProvider:     &transport.CompletionOptions{TriggerCharacters: []string{"."}},
		SemanticTokensProvider: &transport.SemanticTokensOptions{
			Legend: transport.SemanticTokensLegend{TokenTypes: tokenTypes},
			Full:   true,
		},
		Workspace: &transport.WorkspaceOptions{
			WorkspaceFolders: &transport.WorkspaceFolders5Gn{Supported: true, ChangeNotifications: "workspace"},
		},
	}

	s.Workspace = workspace.New(s.ld, s.newParser, encoding, s.sourceExt)
	if err := s.Workspace.Init(params.RootURI, ""); err != nil {
		logging.Logger.Error("initializing workspace", zap.Error(err))
	}

	result := transport.InitializeResult{
		Capabilities: s.Capabilities,
		ServerInfo:   &transport.ServerInfo{Name: "lsf", Version: "0.1.0"},
	}
	return json.Marshal(result)
}

// handleInitialized starts the background scan and filesystem watch
// now that the client has acknowledged capabilities — mirrors the
// teacher's Initialized kicking off GenerateDiagnostics and
// Workspace.Init in the background rather than blocking the response.
func handleInitialized(ctx context.Context, s *Server, par json.RawMessage) error {
	s.Status = Running

	go func() {
		if err := s.Workspace.Scan(ctx); err != nil {
			logging.Logger.Warn("workspace scan reported errors", zap.Error(err))
		}
		if err := s.Workspace.Watch(ctx); err != nil {
			logging.Logger.Warn("starting workspace watch", zap.Error(err))
		}
	}()
	return nil
}

// handleShutdown tears down the workspace's background resources
// (watcher, temp dir) ahead of exit, same as the teacher's ShutdownEnd
// removing its temp dir early in case the client never sends exit.
func handleShutdown(ctx context.Context, s *Server, id interface{}, par json.RawMessage) (json.RawMessage, error) {
	s.Status = Shutdown
	if s.Workspace != nil {
		s.Workspace.Shutdown()
	}
	return json.Marshal(nil)
}

func handleExit(ctx context.Context, s *Server, par json.RawMessage) error {
	if s.Status == Shutdown {
		s.Status = Exit
	} else {
		s.Status = ExitError
	}
	return nil
}

// handleDidChangeConfiguration implements workspace/didChangeConfiguration
// (spec §6 Settings): re-derives and re-mirrors include_path.
func handleDidChangeConfiguration(ctx context.Context, s *Server, par json.RawMessage) error {
	var params transport.DidChangeConfigurationParams
	if err := json.Unmarshal(par, &params); err != nil {
		return err
	}
	if params.Settings.IncludePath == "" {
		return nil
	}
	return s.Workspace.UpdateIncludePath(ctx, params.Settings.IncludePath)
}
