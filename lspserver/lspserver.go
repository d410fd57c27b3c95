// Package lspserver implements spec §5/§6: the cooperative LSP request
// loop over stdio, dispatching textDocument/* and workspace/* methods
// to a workspace.Workspace and a plugin.Manager. Grounded on the
// teacher's server/server.go (ServerState enum, the Loop/HandleMethod
// read-dispatch-write cycle, the requestHandlers/notificationHandlers
// maps) and server/lifecycle.go (the initialize/initialized/shutdown/
// exit handlers), generalized away from the teacher's Faust-specific
// Store/DependencyGraph/Cache setup onto workspace.Workspace.Init/
// Scan/Watch.
package lspserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/logging"
	"github.com/lsfproject/lsf/plugin"
	"github.com/lsfproject/lsf/transport"
	"github.com/lsfproject/lsf/util"
	"github.com/lsfproject/lsf/workspace"
)

// ServerState mirrors the teacher's lifecycle enum exactly; LSF adds
// no new states since the wire lifecycle (initialize..shutdown..exit)
// is unchanged by the domain.
type ServerState int

const (
	Created ServerState = iota
	Initializing
	Running
	Shutdown
	Exit
	ExitError
)

// Server is the process-wide LSP endpoint: one Workspace, one plugin
// Manager, one Transport, plus the lifecycle state the handshake
// methods drive.
type Server struct {
	mu sync.Mutex

	Capabilities transport.ServerCapabilities
	Workspace    *workspace.Workspace
	Plugins      *plugin.Manager
	Status       ServerState
	Transport    transport.Transport

	reqIdCtr int

	ld        *langdef.LanguageDefinition
	newParser workspace.NewParser
	sourceExt string
}

// New builds a Server around a language definition, a per-file parser
// factory, the source extension its workspace scans/watches admit,
// and a plugin manager (possibly with zero analyses registered).
func New(ld *langdef.LanguageDefinition, newParser workspace.NewParser, sourceExt string, plugins *plugin.Manager) *Server {
	return &Server{
		ld:        ld,
		newParser: newParser,
		sourceExt: sourceExt,
		Plugins:   plugins,
		Status:    Created,
	}
}

// Init binds the transport; the Workspace itself is constructed once
// initialize negotiates a position encoding, since Workspace.New needs
// it up front.
func (s *Server) Init(transp transport.TransportMethod) {
	s.Status = Created
	s.Transport.Init(transport.Server, transp)
}

// Run starts the main Loop and blocks until it ends or ctx is
// cancelled, mirroring the teacher's Server.Run cancellation-vs-error
// race.
func (s *Server) Run(ctx context.Context) error {
	end := make(chan error, 1)
	go s.Loop(ctx, end)

	var returnErr error
	select {
	case err := <-end:
		if err != nil {
			logging.Logger.Error("lspserver exiting", zap.Error(err))
			returnErr = err
		} else {
			logging.Logger.Info("lspserver exited cleanly")
		}
	case <-ctx.Done():
		logging.Logger.Info("lspserver canceled")
	}

	if s.Workspace != nil {
		s.Workspace.Shutdown()
	}
	return returnErr
}

// Loop reads one JSON-RPC message at a time, dispatching requests
// concurrently except for shutdown/exit, which run inline so the
// state transition they cause is visible to the next Read.
func (s *Server) Loop(ctx context.Context, end chan<- error) {
	var err error
	for s.Status != Exit && s.Status != ExitError && !s.Transport.Closed && err == nil {
		select {
		case <-ctx.Done():
			end <- nil
			return
		default:
		}

		var msg []byte
		msg, err = s.Transport.Read()
		if err != nil {
			break
		}

		method, merr := transport.GetMethod(msg)
		if merr != nil {
			err = merr
			break
		}
		if method == "" {
			break
		}

		if verr := s.ValidateMethod(method); verr != nil {
			logging.Logger.Warn("rejecting method for current state", zap.String("method", method), zap.Error(verr))
			continue
		}

		if method == "exit" || method == "shutdown" {
			s.HandleMethod(ctx, method, msg)
		} else {
			go s.HandleMethod(ctx, method, msg)
		}
	}

	if s.Status == ExitError {
		end <- errors.New("lspserver: exiting ungracefully")
		return
	}
	if s.Status == Exit {
		end <- nil
		return
	}
	if err == nil && s.Transport.Closed {
		err = errors.New("lspserver: stream closed")
	}
	s.Transport.Close()
	end <- err
}

// ValidateMethod rejects methods the wire lifecycle doesn't allow in
// the current state (spec §6's handshake: nothing but initialize
// before it completes, nothing but exit after shutdown).
func (s *Server) ValidateMethod(method string) error {
	switch s.Status {
	case Created:
		if method != "initialize" {
			return errors.New("server not initialized, got " + method)
		}
	case Shutdown:
		if method != "exit" {
			return errors.New("server shut down, can only exit, got " + method)
		}
	}
	return nil
}

type requestHandler func(ctx context.Context, s *Server, id interface{}, params json.RawMessage) (json.RawMessage, error)
type notificationHandler func(ctx context.Context, s *Server, params json.RawMessage) error

var requestHandlers = map[string]requestHandler{
	"initialize":                       handleInitialize,
	"shutdown":                         handleShutdown,
	"textDocument/completion":          handleCompletion,
	"textDocument/hover":               handleHover,
	"textDocument/definition":          handleDefinition,
	"textDocument/rename":              handleRename,
	"textDocument/semanticTokens/full": handleSemanticTokensFull,
	"textDocument/documentSymbol":      handleDocumentSymbol,
}

var notificationHandlers = map[string]notificationHandler{
	"initialized":                      handleInitialized,
	"textDocument/didOpen":             handleDidOpen,
	"textDocument/didChange":           handleDidChange,
	"textDocument/didClose":            handleDidClose,
	"textDocument/didSave":             handleDidSave,
	"workspace/didChangeConfiguration": handleDidChangeConfiguration,
	"exit":                             handleExit,
}

// HandleMethod decodes the envelope and dispatches to the matching
// handler, writing a response for requests and nothing for
// notifications — same split as the teacher's HandleMethod.
func (s *Server) HandleMethod(ctx context.Context, method string, message []byte) {
	_, content, _ := bytes.Cut(message, []byte{'\r', '\n', '\r', '\n'})

	if handler, ok := requestHandlers[method]; ok {
		var m transport.RequestMessage
		if err := json.Unmarshal(content, &m); err != nil {
			logging.Logger.Error("decoding request", zap.String("method", method), zap.Error(err))
			return
		}
		if n, ok := m.ID.(float64); ok {
			s.mu.Lock()
			if int(n)+1 > s.reqIdCtr {
				s.reqIdCtr = int(n) + 1
			}
			s.mu.Unlock()
		}

		resp, err := handler(ctx, s, m.ID, m.Params)
		if err != nil {
			logging.Logger.Error("handling request", zap.String("method", method), zap.Error(err))
			resp, _ = json.Marshal(transport.ResponseMessage{
				Message: transport.Message{Jsonrpc: "2.0"},
				ID:      m.ID,
				Error:   &transport.ResponseError{Code: transport.InternalError, Message: err.Error()},
			})
		} else {
			resp, _ = json.Marshal(transport.ResponseMessage{
				Message: transport.Message{Jsonrpc: "2.0"},
				ID:      m.ID,
				Result:  resp,
			})
		}
		if err := s.Transport.Write(resp); err != nil {
			logging.Logger.Error("writing response", zap.Error(err))
		}
		return
	}

	if handler, ok := notificationHandlers[method]; ok {
		var m transport.NotificationMessage
		if err := json.Unmarshal(content, &m); err != nil {
			logging.Logger.Error("decoding notification", zap.String("method", method), zap.Error(err))
			return
		}
		if err := handler(ctx, s, m.Params); err != nil {
			logging.Logger.Error("handling notification", zap.String("method", method), zap.Error(err))
		}
		return
	}

	logging.Logger.Warn("no handler for method", zap.String("method", method))
}

// publishDiagnostics runs the file's parse diagnostics and the plugin
// manager's external analyses concurrently-merged set, and sends one
// textDocument/publishDiagnostics notification (spec §7: a failing
// analysis is reported but never aborts the parse diagnostics).
func (s *Server) publishDiagnostics(ctx context.Context, uri transport.DocumentURI) {
	f, ok := s.Workspace.File(uri)
	if !ok {
		return
	}
	params := f.Diagnostics()

	if s.Plugins != nil {
		path, err := util.URI2path(string(uri))
		if err == nil {
			extra, errs := s.Plugins.Run(ctx, path, f.Content())
			params.Diagnostics = append(params.Diagnostics, extra...)
			for _, e := range errs {
				logging.Logger.Warn("analysis failed", zap.String("uri", string(uri)), zap.Error(e))
			}
		}
	}

	content, err := json.Marshal(params)
	if err != nil {
		logging.Logger.Error("marshaling diagnostics", zap.Error(err))
		return
	}
	if err := s.Transport.WriteNotif("textDocument/publishDiagnostics", content); err != nil {
		logging.Logger.Error("writing diagnostics notification", zap.Error(err))
	}
}
