package lspserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lsfproject/lsf/cst"
	"github.com/lsfproject/lsf/langdef"
	"github.com/lsfproject/lsf/lspserver"
	"github.com/lsfproject/lsf/plugin"
	"github.com/lsfproject/lsf/transport"
	"github.com/lsfproject/lsf/util"
)

// Minimal line-oriented fake CST/parser, same shape as the other
// packages' fixtures: each non-blank line "const NAME = VALUE;" is a
// constant_dec.

type fakeNode struct {
	kind               string
	named              bool
	isError            bool
	startRow, startCol uint32
	endRow, endCol     uint32
	text               string
	fields             map[uint32]string
	children           []*fakeNode
	parent             *fakeNode
}

func (n *fakeNode) Kind() string        { return n.kind }
func (n *fakeNode) GrammarName() string { return n.kind }
func (n *fakeNode) IsNamed() bool       { return n.named }
func (n *fakeNode) IsError() bool       { return n.isError }
func (n *fakeNode) IsMissing() bool     { return false }
func (n *fakeNode) Range() cst.Range {
	return cst.Range{StartPoint: cst.Point{Row: n.startRow, Column: n.startCol}, EndPoint: cst.Point{Row: n.endRow, Column: n.endCol}}
}
func (n *fakeNode) Utf8Text(source []byte) string { return n.text }
func (n *fakeNode) ChildCount() uint32            { return uint32(len(n.children)) }
func (n *fakeNode) Child(i uint32) (cst.Node, bool) {
	if int(i) >= len(n.children) {
		return nil, false
	}
	return n.children[i], true
}
func (n *fakeNode) FieldNameForChild(i uint32) string {
	if n.fields == nil {
		return ""
	}
	return n.fields[i]
}
func (n *fakeNode) Parent() (cst.Node, bool) {
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

type fakeTree struct{ root *fakeNode }

func (t *fakeTree) RootNode() cst.Node { return t.root }
func (t *fakeTree) Edit(cst.Edit)      {}
func (t *fakeTree) Close()             {}

type fakeParser struct{}

func (fakeParser) Close() {}

func (fakeParser) Parse(source []byte, old cst.Tree) (cst.Tree, error) {
	lines := strings.Split(string(source), "\n")
	root := &fakeNode{kind: "program", named: true, text: string(source), endRow: uint32(len(lines))}
	for row, line := range lines {
		const prefix = "const "
		eq := strings.Index(line, " = ")
		semi := strings.Index(line, ";")
		if !strings.HasPrefix(line, prefix) || eq < len(prefix) || semi < eq {
			continue
		}
		name := line[len(prefix):eq]
		nameCol := uint32(len(prefix))
		dec := &fakeNode{
			kind: "constant_dec", named: true, startRow: uint32(row), endRow: uint32(row), endCol: uint32(len(line)),
			children: []*fakeNode{{kind: "identifier", named: true, startRow: uint32(row), endRow: uint32(row), startCol: nameCol, endCol: nameCol + uint32(len(name)), text: name}},
			fields:   map[uint32]string{0: "name"},
		}
		dec.children[0].parent = dec
		dec.parent = root
		root.children = append(root.children, dec)
	}
	return &fakeTree{root: root}, nil
}

const doc = `
symbol_types:
  - name: constant
    completion_kind: 6
    semantic_token_kind: variable
ast_rules:
  - name: Root
    is_scope: true
    children:
      - multiplicity: many
        child:
          query: {kind: constant_dec}
          target: {rule: ConstantDec}
  - name: ConstantDec
    symbol:
      define: {type: constant, name_child: DefName}
    children:
      - multiplicity: one
        child:
          query: {field: name}
          target: {direct: DefName}
`

// wireMessage frames content the way Transport.Read hands messages to
// HandleMethod: header, blank line, then the JSON-RPC body.
func wireMessage(t *testing.T, v interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	// HandleMethod only splits on the header/body separator; it never
	// reads Content-Length itself (Transport.split already framed the
	// message before HandleMethod saw it), so a placeholder header works.
	return append([]byte("Content-Length: 0\r\n\r\n"), body...)
}

func newServer(t *testing.T) *lspserver.Server {
	t.Helper()
	ld, err := langdef.Parse([]byte(doc))
	require.NoError(t, err)
	return lspserver.New(ld, func() (cst.Parser, error) { return fakeParser{}, nil }, ".lang", plugin.NewManager())
}

func TestValidateMethodOnlyAllowsInitializeBeforeHandshake(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.ValidateMethod("initialize"))
	require.Error(t, s.ValidateMethod("textDocument/completion"))
}

func TestValidateMethodOnlyAllowsExitAfterShutdown(t *testing.T) {
	s := newServer(t)
	s.Status = lspserver.Shutdown
	require.NoError(t, s.ValidateMethod("exit"))
	require.Error(t, s.ValidateMethod("textDocument/hover"))
}

func TestInitializeBuildsCapabilitiesAndWorkspace(t *testing.T) {
	s := newServer(t)

	var buf bytes.Buffer
	s.Transport.Writer = &buf

	root := t.TempDir()
	params := transport.InitializeParams{RootURI: transport.DocumentURI(util.Path2URI(root))}
	msg := transport.RequestMessage{Message: transport.Message{Jsonrpc: "2.0"}, ID: float64(1), Method: "initialize", Params: mustMarshal(t, params)}

	s.HandleMethod(context.Background(), "initialize", wireMessage(t, msg))

	_, content, found := bytes.Cut(buf.Bytes(), []byte{'\r', '\n', '\r', '\n'})
	require.True(t, found)

	var resp transport.ResponseMessage
	require.NoError(t, json.Unmarshal(content, &resp))
	require.Nil(t, resp.Error)

	var result transport.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.NotNil(t, result.Capabilities.CompletionProvider)
	require.Equal(t, []string{"."}, result.Capabilities.CompletionProvider.TriggerCharacters)
	require.NotNil(t, result.Capabilities.SemanticTokensProvider)
	require.Equal(t, []string{"variable"}, result.Capabilities.SemanticTokensProvider.Legend.TokenTypes)
}

func TestDidOpenThenCompletionSeesDefinedSymbol(t *testing.T) {
	s := newServer(t)

	var buf bytes.Buffer
	s.Transport.Writer = &buf

	root := t.TempDir()
	initParams := transport.InitializeParams{RootURI: transport.DocumentURI(util.Path2URI(root))}
	initMsg := transport.RequestMessage{Message: transport.Message{Jsonrpc: "2.0"}, ID: float64(1), Method: "initialize", Params: mustMarshal(t, initParams)}
	s.HandleMethod(context.Background(), "initialize", wireMessage(t, initMsg))
	buf.Reset()

	uri := transport.DocumentURI(util.Path2URI(root + "/a.lang"))
	openParams := transport.DidOpenTextDocumentParams{TextDocument: transport.TextDocumentItem{URI: uri, Text: "const X = 1;\n"}}
	openMsg := transport.NotificationMessage{Message: transport.Message{Jsonrpc: "2.0"}, Method: "textDocument/didOpen", Params: mustMarshal(t, openParams)}
	s.HandleMethod(context.Background(), "textDocument/didOpen", wireMessage(t, openMsg))

	completionParams := transport.CompletionParams{TextDocumentPositionParams: transport.TextDocumentPositionParams{
		TextDocument: transport.TextDocumentIdentifier{URI: uri},
		Position:     transport.Position{Line: 0, Character: 12},
	}}
	buf.Reset()
	reqMsg := transport.RequestMessage{Message: transport.Message{Jsonrpc: "2.0"}, ID: float64(2), Method: "textDocument/completion", Params: mustMarshal(t, completionParams)}
	s.HandleMethod(context.Background(), "textDocument/completion", wireMessage(t, reqMsg))

	_, content, found := bytes.Cut(buf.Bytes(), []byte{'\r', '\n', '\r', '\n'})
	require.True(t, found)
	var resp transport.ResponseMessage
	require.NoError(t, json.Unmarshal(content, &resp))
	require.Nil(t, resp.Error)

	var items []transport.CompletionItem
	require.NoError(t, json.Unmarshal(resp.Result, &items))
	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	require.Contains(t, labels, "X")
}

func TestDocumentSymbolListsDefinedConstants(t *testing.T) {
	s := newServer(t)

	var buf bytes.Buffer
	s.Transport.Writer = &buf

	root := t.TempDir()
	initParams := transport.InitializeParams{RootURI: transport.DocumentURI(util.Path2URI(root))}
	initMsg := transport.RequestMessage{Message: transport.Message{Jsonrpc: "2.0"}, ID: float64(1), Method: "initialize", Params: mustMarshal(t, initParams)}
	s.HandleMethod(context.Background(), "initialize", wireMessage(t, initMsg))
	buf.Reset()

	uri := transport.DocumentURI(util.Path2URI(root + "/a.lang"))
	openParams := transport.DidOpenTextDocumentParams{TextDocument: transport.TextDocumentItem{URI: uri, Text: "const X = 1;\n"}}
	openMsg := transport.NotificationMessage{Message: transport.Message{Jsonrpc: "2.0"}, Method: "textDocument/didOpen", Params: mustMarshal(t, openParams)}
	s.HandleMethod(context.Background(), "textDocument/didOpen", wireMessage(t, openMsg))

	buf.Reset()
	symParams := transport.DocumentSymbolParams{TextDocument: transport.TextDocumentIdentifier{URI: uri}}
	reqMsg := transport.RequestMessage{Message: transport.Message{Jsonrpc: "2.0"}, ID: float64(2), Method: "textDocument/documentSymbol", Params: mustMarshal(t, symParams)}
	s.HandleMethod(context.Background(), "textDocument/documentSymbol", wireMessage(t, reqMsg))

	_, content, found := bytes.Cut(buf.Bytes(), []byte{'\r', '\n', '\r', '\n'})
	require.True(t, found)
	var resp transport.ResponseMessage
	require.NoError(t, json.Unmarshal(content, &resp))
	require.Nil(t, resp.Error)

	var symbols []transport.DocumentSymbol
	require.NoError(t, json.Unmarshal(resp.Result, &symbols))
	require.Len(t, symbols, 1)
	require.Equal(t, "X", symbols[0].Name)
	require.Equal(t, transport.Variable, symbols[0].Kind)
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
